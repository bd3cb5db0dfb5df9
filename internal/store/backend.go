package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/dibs/internal/model"
)

// Backend exposes the store functions as the catalog's persistence
// collaborator. Missing rows surface as model.ErrNotFound.
type Backend struct {
	DB *sql.DB
}

// NewBackend wraps db.
func NewBackend(db *sql.DB) *Backend {
	return &Backend{DB: db}
}

// LoadItems returns every item in insertion order.
func (b *Backend) LoadItems(ctx context.Context) ([]model.WishItem, error) {
	return ListItems(ctx, b.DB)
}

// LoadCollections returns every collection in insertion order.
func (b *Backend) LoadCollections(ctx context.Context) ([]model.Collection, error) {
	return ListCollections(ctx, b.DB)
}

// GetItem re-reads one item, returning model.ErrNotFound if it is gone.
func (b *Backend) GetItem(ctx context.Context, id string) (*model.WishItem, error) {
	item, err := GetItem(ctx, b.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, model.ErrNotFound)
	}
	return item, nil
}

// CreateItem persists a new item and returns it with its assigned ID.
func (b *Backend) CreateItem(ctx context.Context, item model.WishItem) (*model.WishItem, error) {
	return CreateItem(ctx, b.DB, item)
}

// UpdateItem overwrites a stored item.
func (b *Backend) UpdateItem(ctx context.Context, item model.WishItem) (*model.WishItem, error) {
	return UpdateItem(ctx, b.DB, item)
}

// DeleteItem removes an item and everything attached to it.
func (b *Backend) DeleteItem(ctx context.Context, id string) error {
	return DeleteItem(ctx, b.DB, id)
}

// CreateCollection persists a new collection.
func (b *Backend) CreateCollection(ctx context.Context, c model.Collection) (*model.Collection, error) {
	return CreateCollection(ctx, b.DB, c)
}

// UpdateCollection overwrites a stored collection.
func (b *Backend) UpdateCollection(ctx context.Context, c model.Collection) (*model.Collection, error) {
	return UpdateCollection(ctx, b.DB, c)
}

// DeleteCollection removes a collection and its memberships.
func (b *Backend) DeleteCollection(ctx context.Context, id string) error {
	return DeleteCollection(ctx, b.DB, id)
}

// Claim records a claim, failing with model.ErrAlreadyClaimed if one exists.
func (b *Backend) Claim(ctx context.Context, itemID, claimantID string, at time.Time) (*model.Reservation, error) {
	return ClaimItem(ctx, b.DB, itemID, claimantID, at)
}

// Release drops a claim, limited to claimantID when it is non-empty.
// It reports whether a claim was removed.
func (b *Backend) Release(ctx context.Context, itemID, claimantID string) (bool, error) {
	return ReleaseItem(ctx, b.DB, itemID, claimantID)
}
