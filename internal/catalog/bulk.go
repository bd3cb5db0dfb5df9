package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/erazemk/dibs/internal/model"
)

// BulkKind selects what a bulk operation does to each item.
type BulkKind string

// Bulk kinds.
const (
	BulkDelete           BulkKind = "delete"
	BulkArchive          BulkKind = "archive"
	BulkTogglePrivacy    BulkKind = "togglePrivacy"
	BulkMoveToCollection BulkKind = "moveToCollection"
	BulkDuplicate        BulkKind = "duplicate"
)

// BulkRequest applies one kind of change to a set of items.
type BulkRequest struct {
	Kind             BulkKind `json:"kind"`
	ItemIDs          []string `json:"item_ids"`
	TargetCollection string   `json:"target_collection,omitempty"`
}

// BulkFailure names an item that could not be changed and why.
type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkReport lists per-item outcomes in request order. Created maps each
// duplicated item to its copy.
type BulkReport struct {
	SucceededIDs []string          `json:"succeeded_ids"`
	FailedIDs    []BulkFailure     `json:"failed_ids"`
	Created      map[string]string `json:"created,omitempty"`
}

// PartialFailure is returned when at least one item of a bulk operation
// failed. Successful items stay applied.
type PartialFailure struct {
	Report *BulkReport
	Errs   *multierror.Error
}

func (e *PartialFailure) Error() string {
	total := len(e.Report.SucceededIDs) + len(e.Report.FailedIDs)
	return fmt.Sprintf("bulk operation: %d of %d items failed", len(e.Report.FailedIDs), total)
}

func (e *PartialFailure) Unwrap() error {
	return e.Errs.ErrorOrNil()
}

type bulkOutcome struct {
	item     *model.WishItem
	err      error
	timedOut bool
}

// BulkApply runs req against every listed item concurrently. Per-item
// failures, timeouts included, are collected into a *PartialFailure and
// never undo the items that succeeded.
func (c *Catalog) BulkApply(ctx context.Context, viewer model.Viewer, req BulkRequest) (*BulkReport, error) {
	if err := requireOwner(viewer, "bulk "+string(req.Kind)); err != nil {
		return nil, err
	}
	if err := c.validateBulk(req); err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ids := uniqueIDs(req.ItemIDs)
	outcomes := make([]bulkOutcome, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		it, ok := c.item(id)
		if !ok {
			outcomes[i] = bulkOutcome{err: fmt.Errorf("item %s: %w", id, model.ErrNotFound)}
			continue
		}
		wg.Add(1)
		go func(i int, it model.WishItem) {
			defer wg.Done()
			outcomes[i] = c.runBulkItem(ctx, req, it)
		}(i, it)
	}
	wg.Wait()

	report := &BulkReport{SucceededIDs: []string{}, FailedIDs: []BulkFailure{}}
	if req.Kind == BulkDuplicate {
		report.Created = make(map[string]string)
	}
	var errs *multierror.Error
	var added []string
	uncertain := false

	c.mu.Lock()
	for i, id := range ids {
		o := outcomes[i]
		BulkItemResults.WithLabelValues(string(req.Kind), resultLabel(o.err)).Inc()
		if o.err != nil {
			report.FailedIDs = append(report.FailedIDs, BulkFailure{ID: id, Reason: resultLabel(o.err)})
			errs = multierror.Append(errs, o.err)
			switch {
			case errors.Is(o.err, model.ErrNotFound):
				c.dropItemLocked(id)
			case o.timedOut, resultLabel(o.err) == "BackendError":
				uncertain = true
			}
			continue
		}

		report.SucceededIDs = append(report.SucceededIDs, id)
		switch req.Kind {
		case BulkDelete:
			delete(c.items, id)
		case BulkDuplicate:
			cp := o.item.Clone()
			c.items[cp.ID] = &cp
			added = append(added, cp.ID)
			report.Created[id] = cp.ID
		default:
			cp := o.item.Clone()
			c.items[id] = &cp
		}
	}
	c.rebuildLocked(added)
	c.search.purge()
	if uncertain {
		c.markStaleLocked(&model.StaleIndexWarning{Err: fmt.Errorf("bulk %s: %w", req.Kind, errs.ErrorOrNil())})
	}
	c.mu.Unlock()

	slog.Info("bulk operation applied", "kind", req.Kind,
		"succeeded", len(report.SucceededIDs), "failed", len(report.FailedIDs))

	if len(report.FailedIDs) > 0 {
		return report, &PartialFailure{Report: report, Errs: errs}
	}
	return report, nil
}

func (c *Catalog) validateBulk(req BulkRequest) error {
	switch req.Kind {
	case BulkDelete, BulkArchive, BulkTogglePrivacy, BulkDuplicate:
	case BulkMoveToCollection:
		if req.TargetCollection == "" {
			return &model.ValidationError{Field: "target_collection", Message: "target collection required"}
		}
		if req.TargetCollection == model.AllCollectionID {
			return &model.ValidationError{Field: "target_collection", Message: "items cannot be moved to the all collection"}
		}
		c.mu.RLock()
		_, ok := c.collections[req.TargetCollection]
		c.mu.RUnlock()
		if !ok {
			return fmt.Errorf("target collection %s: %w", req.TargetCollection, model.ErrNotFound)
		}
	default:
		return &model.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown bulk kind %q", req.Kind)}
	}
	if len(req.ItemIDs) == 0 {
		return &model.ValidationError{Field: "item_ids", Message: "at least one item required"}
	}
	return nil
}

// runBulkItem bounds one item's backend call by the bulk timeout. A call
// that outlives it is reported as timed out and left to finish on its own.
func (c *Catalog) runBulkItem(ctx context.Context, req BulkRequest, it model.WishItem) bulkOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.bulkTimeout)
	defer cancel()

	done := make(chan bulkOutcome, 1)
	go func() {
		item, err := c.bulkItem(ctx, req, it)
		done <- bulkOutcome{item: item, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			o.err = fmt.Errorf("item %s: %w", it.ID, o.err)
		}
		return o
	case <-ctx.Done():
		return bulkOutcome{err: fmt.Errorf("item %s: %w", it.ID, ctx.Err()), timedOut: true}
	}
}

func (c *Catalog) bulkItem(ctx context.Context, req BulkRequest, it model.WishItem) (*model.WishItem, error) {
	switch req.Kind {
	case BulkDelete:
		return nil, c.backend.DeleteItem(ctx, it.ID)
	case BulkArchive:
		if it.ArchivedAt == nil {
			now := c.now().UTC()
			it.ArchivedAt = &now
		}
		return c.backend.UpdateItem(ctx, it)
	case BulkTogglePrivacy:
		it.IsPrivate = !it.IsPrivate
		return c.backend.UpdateItem(ctx, it)
	case BulkMoveToCollection:
		it.CollectionIDs = []string{req.TargetCollection}
		return c.backend.UpdateItem(ctx, it)
	case BulkDuplicate:
		cp := it.Clone()
		cp.ID = ""
		cp.Name = it.Name + " (copy)"
		cp.Reservation = nil
		cp.CreatedAt = c.now().UTC()
		return c.backend.CreateItem(ctx, cp)
	}
	return nil, fmt.Errorf("unknown bulk kind %q", req.Kind)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
