package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/dibs/internal/model"
)

// CreateCollection creates a collection. An empty ID is replaced with a UUID.
func CreateCollection(ctx context.Context, db *sql.DB, c model.Collection) (*model.Collection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ID == model.AllCollectionID {
		return nil, &model.ValidationError{Field: "id", Message: "the all collection is reserved"}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO collections (id, name, icon, is_default) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Icon, c.IsDefault,
	)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	return GetCollection(ctx, db, c.ID)
}

// GetCollection returns a collection by ID with its item count, or nil.
func GetCollection(ctx context.Context, db *sql.DB, id string) (*model.Collection, error) {
	c := &model.Collection{}
	err := db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.icon, c.is_default,
		        (SELECT COUNT(*) FROM item_collections ic WHERE ic.collection_id = c.id)
		 FROM collections c WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Icon, &c.IsDefault, &c.ItemCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return c, nil
}

// ListCollections returns all collections in creation order with item counts.
func ListCollections(ctx context.Context, db *sql.DB) ([]model.Collection, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id, c.name, c.icon, c.is_default,
		        (SELECT COUNT(*) FROM item_collections ic WHERE ic.collection_id = c.id)
		 FROM collections c ORDER BY c.rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var collections []model.Collection
	for rows.Next() {
		var c model.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.IsDefault, &c.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// UpdateCollection updates a collection's name and icon.
func UpdateCollection(ctx context.Context, db *sql.DB, c model.Collection) (*model.Collection, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE collections SET name = ?, icon = ?, is_default = ? WHERE id = ?`,
		c.Name, c.Icon, c.IsDefault, c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating collection: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("collection %s: %w", c.ID, model.ErrNotFound)
	}
	return GetCollection(ctx, db, c.ID)
}

// DeleteCollection removes a collection and detaches it from every item.
func DeleteCollection(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("collection %s: %w", id, model.ErrNotFound)
	}
	return nil
}
