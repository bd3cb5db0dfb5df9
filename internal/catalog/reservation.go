package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/dibs/internal/model"
)

// ItemView is an item as one viewer is allowed to see it.
type ItemView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Link          string     `json:"link,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	DesireScore   int        `json:"desire_score"`
	CategoryTags  []string   `json:"category_tags,omitempty"`
	IsPrivate     bool       `json:"is_private"`
	CollectionIDs []string   `json:"collection_ids,omitempty"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	Reserved    bool   `json:"reserved"`
	ClaimantID  string `json:"claimant_id,omitempty"`
	ClaimedByMe bool   `json:"claimed_by_me"`
	CanClaim    bool   `json:"can_claim"`
	CanUnclaim  bool   `json:"can_unclaim"`
	CanRelease  bool   `json:"can_release,omitempty"`

	Score int `json:"score,omitempty"`
}

// shapeView builds viewer's view of it. The owner learns only that an item
// is reserved. A claimant sees their own claim, other friends see who
// claimed it and visitors only see the flag.
func shapeView(viewer model.Viewer, it *model.WishItem) ItemView {
	cp := it.Clone()
	v := ItemView{
		ID:            cp.ID,
		Name:          cp.Name,
		Description:   cp.Description,
		Link:          cp.Link,
		ImageURL:      cp.ImageURL,
		DesireScore:   cp.DesireScore,
		CategoryTags:  cp.CategoryTags,
		IsPrivate:     cp.IsPrivate,
		CollectionIDs: cp.CollectionIDs,
		ArchivedAt:    cp.ArchivedAt,
		CreatedAt:     cp.CreatedAt,
		Reserved:      cp.Claimed(),
	}

	switch {
	case viewer.IsOwner():
		v.CanRelease = v.Reserved
	case v.Reserved && cp.Reservation.ClaimantID == viewer.ID && !viewer.Anonymous():
		v.ClaimedByMe = true
		v.ClaimantID = viewer.ID
		v.CanUnclaim = true
	case v.Reserved && viewer.Role == model.RoleFriend:
		v.ClaimantID = cp.Reservation.ClaimantID
	case !v.Reserved:
		v.CanClaim = !viewer.Anonymous() && !cp.IsPrivate
	}
	return v
}

// Claim reserves an item for viewer. Only one claim per item can ever
// succeed; the backend arbitrates races.
func (c *Catalog) Claim(ctx context.Context, viewer model.Viewer, itemID string) (*model.Reservation, error) {
	res, err := c.claim(ctx, viewer, itemID)
	countReservation("claim", err)
	return res, err
}

func (c *Catalog) claim(ctx context.Context, viewer model.Viewer, itemID string) (*model.Reservation, error) {
	if viewer.Anonymous() {
		return nil, fmt.Errorf("claiming item %s: %w", itemID, model.ErrForbidden)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	it, ok := c.item(itemID)
	switch {
	case !ok:
		return nil, fmt.Errorf("claiming item %s: %w", itemID, model.ErrNotFound)
	case viewer.IsOwner():
		return nil, fmt.Errorf("claiming own item %s: %w", itemID, model.ErrInvalidClaim)
	case it.IsPrivate:
		return nil, fmt.Errorf("claiming private item %s: %w", itemID, model.ErrInvalidClaim)
	case it.Claimed():
		return nil, fmt.Errorf("claiming item %s: %w", itemID, model.ErrAlreadyClaimed)
	}

	res, err := c.backend.Claim(ctx, itemID, viewer.ID, c.now().UTC())
	if err != nil {
		c.reconcile(ctx, itemID, err)
		return nil, fmt.Errorf("claiming item %s: %w", itemID, err)
	}

	it.Reservation = res
	c.mu.Lock()
	c.applyItemLocked(it)
	c.search.purge()
	c.mu.Unlock()

	slog.Info("item claimed", "item", itemID)
	out := *res
	return &out, nil
}

// Unclaim withdraws viewer's own claim. Unclaiming an available item is a
// no-op that returns the available record.
func (c *Catalog) Unclaim(ctx context.Context, viewer model.Viewer, itemID string) (*model.Reservation, error) {
	res, err := c.unclaim(ctx, viewer, itemID)
	countReservation("unclaim", err)
	return res, err
}

func (c *Catalog) unclaim(ctx context.Context, viewer model.Viewer, itemID string) (*model.Reservation, error) {
	if viewer.Anonymous() {
		return nil, fmt.Errorf("unclaiming item %s: %w", itemID, model.ErrForbidden)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	it, ok := c.item(itemID)
	switch {
	case !ok:
		return nil, fmt.Errorf("unclaiming item %s: %w", itemID, model.ErrNotFound)
	case !it.Claimed():
		return model.AvailableReservation(itemID), nil
	case it.Reservation.ClaimantID != viewer.ID:
		return nil, fmt.Errorf("unclaiming item %s: %w", itemID, model.ErrForbidden)
	}

	released, err := c.backend.Release(ctx, itemID, viewer.ID)
	if err != nil {
		c.reconcile(ctx, itemID, err)
		return nil, fmt.Errorf("unclaiming item %s: %w", itemID, err)
	}
	if !released {
		// The backend no longer holds this claim.
		if w := c.resync(ctx, itemID); w != nil {
			return model.AvailableReservation(itemID), w
		}
		if cur, ok := c.item(itemID); ok && cur.Claimed() {
			return nil, fmt.Errorf("unclaiming item %s: %w", itemID, model.ErrForbidden)
		}
		return model.AvailableReservation(itemID), nil
	}

	c.setAvailable(it)
	slog.Info("item unclaimed", "item", itemID)
	return model.AvailableReservation(itemID), nil
}

// Release lets the owner clear a claim without learning who held it.
func (c *Catalog) Release(ctx context.Context, viewer model.Viewer, itemID string) (*model.Reservation, error) {
	res, err := c.release(ctx, viewer, itemID)
	countReservation("release", err)
	return res, err
}

func (c *Catalog) release(ctx context.Context, viewer model.Viewer, itemID string) (*model.Reservation, error) {
	if err := requireOwner(viewer, "releasing item"); err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	it, ok := c.item(itemID)
	if !ok {
		return nil, fmt.Errorf("releasing item %s: %w", itemID, model.ErrNotFound)
	}
	if !it.Claimed() {
		return model.AvailableReservation(itemID), nil
	}

	if _, err := c.backend.Release(ctx, itemID, ""); err != nil {
		c.reconcile(ctx, itemID, err)
		return nil, fmt.Errorf("releasing item %s: %w", itemID, err)
	}

	c.setAvailable(it)
	slog.Info("item released by owner", "item", itemID)
	return model.AvailableReservation(itemID), nil
}

func (c *Catalog) setAvailable(it model.WishItem) {
	it.Reservation = nil
	c.mu.Lock()
	c.applyItemLocked(it)
	c.search.purge()
	c.mu.Unlock()
}

func countReservation(op string, err error) {
	ReservationResults.WithLabelValues(op, resultLabel(err)).Inc()
}

// resultLabel names the outcome of an operation for metrics and bulk
// reports.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, model.ErrNotFound):
		return "NotFound"
	case errors.Is(err, model.ErrAlreadyClaimed):
		return "AlreadyClaimed"
	case errors.Is(err, model.ErrInvalidClaim):
		return "InvalidClaim"
	case errors.Is(err, model.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, model.ErrValidation):
		return "Validation"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	}
	return "BackendError"
}
