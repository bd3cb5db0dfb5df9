// Package catalog holds the in-memory wishlist: items, collections and the
// indexes, search cache, reservations and bulk operations built over them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/dibs/internal/model"
)

// DefaultBulkTimeout bounds each per-item backend call of a bulk operation.
const DefaultBulkTimeout = 5 * time.Second

// Backend is the durable store behind the catalog. Missing items and
// collections are reported as model.ErrNotFound and a lost claim race as
// model.ErrAlreadyClaimed.
type Backend interface {
	LoadItems(ctx context.Context) ([]model.WishItem, error)
	LoadCollections(ctx context.Context) ([]model.Collection, error)
	GetItem(ctx context.Context, id string) (*model.WishItem, error)
	CreateItem(ctx context.Context, item model.WishItem) (*model.WishItem, error)
	UpdateItem(ctx context.Context, item model.WishItem) (*model.WishItem, error)
	DeleteItem(ctx context.Context, id string) error
	CreateCollection(ctx context.Context, c model.Collection) (*model.Collection, error)
	UpdateCollection(ctx context.Context, c model.Collection) (*model.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
	Claim(ctx context.Context, itemID, claimantID string, at time.Time) (*model.Reservation, error)
	Release(ctx context.Context, itemID, claimantID string) (bool, error)
}

// Options tunes a Catalog. Zero values select the defaults.
type Options struct {
	CacheSize   int
	BulkTimeout time.Duration
	Now         func() time.Time
}

// Catalog is the authoritative in-memory view of one wishlist.
type Catalog struct {
	backend     Backend
	now         func() time.Time
	bulkTimeout time.Duration
	search      *searchEngine

	// writeMu serializes mutations across the backend call and the index
	// update. mu guards everything below it.
	writeMu sync.Mutex

	mu          sync.RWMutex
	items       map[string]*model.WishItem
	collections map[string]*model.Collection
	collOrder   []string
	idx         *index
	stale       bool
	warnings    []string
}

// New creates an empty catalog. Call Load to fill it from the backend.
func New(backend Backend, opts Options) (*Catalog, error) {
	search, err := newSearchEngine(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	if opts.BulkTimeout <= 0 {
		opts.BulkTimeout = DefaultBulkTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Catalog{
		backend:     backend,
		now:         opts.Now,
		bulkTimeout: opts.BulkTimeout,
		search:      search,
		items:       make(map[string]*model.WishItem),
		collections: make(map[string]*model.Collection),
		idx:         newIndex(),
	}, nil
}

// Load replaces the catalog's state with everything the backend holds and
// rebuilds every index.
func (c *Catalog) Load(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.reload(ctx)
}

func (c *Catalog) reload(ctx context.Context) error {
	start := time.Now()

	items, err := c.backend.LoadItems(ctx)
	if err != nil {
		return fmt.Errorf("loading items: %w", err)
	}
	colls, err := c.backend.LoadCollections(ctx)
	if err != nil {
		return fmt.Errorf("loading collections: %w", err)
	}

	byID := make(map[string]*model.WishItem, len(items))
	list := make([]*model.WishItem, 0, len(items))
	for i := range items {
		it := items[i].Clone()
		byID[it.ID] = &it
		list = append(list, &it)
	}
	collByID := make(map[string]*model.Collection, len(colls))
	order := make([]string, 0, len(colls))
	for i := range colls {
		col := colls[i]
		collByID[col.ID] = &col
		order = append(order, col.ID)
	}

	c.mu.Lock()
	c.items = byID
	c.collections = collByID
	c.collOrder = order
	c.idx = rebuildIndex(nil, list)
	c.stale = false
	c.warnings = nil
	c.search.purge()
	c.mu.Unlock()

	IndexRebuildDuration.Observe(time.Since(start).Seconds())
	slog.Info("catalog loaded", "items", len(items), "collections", len(colls))
	return nil
}

// ensureFresh reloads a catalog marked stale, retrying once. It returns
// the warnings that marked the catalog stale so the caller can report them.
func (c *Catalog) ensureFresh(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	stale := c.stale
	c.mu.RUnlock()
	if !stale {
		return nil, nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.RLock()
	stale = c.stale
	settled := append([]string(nil), c.warnings...)
	c.mu.RUnlock()
	if !stale {
		return nil, nil
	}
	err := c.reload(ctx)
	if err != nil {
		err = c.reload(ctx)
	}
	return settled, err
}

// markStaleLocked records a failed refresh. The next read reloads the
// catalog. Callers hold c.mu.
func (c *Catalog) markStaleLocked(w *model.StaleIndexWarning) {
	c.stale = true
	c.warnings = append(c.warnings, w.Error())
	StaleIndexWarnings.Inc()
	slog.Warn("index may be stale", "item", w.ItemID, "error", w.Err)
}

func (c *Catalog) markStale(w *model.StaleIndexWarning) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markStaleLocked(w)
}

// resync pulls an item's true state from the backend, retrying once, and
// installs it. Items the backend no longer has are dropped.
func (c *Catalog) resync(ctx context.Context, id string) *model.StaleIndexWarning {
	it, err := c.backend.GetItem(ctx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		it, err = c.backend.GetItem(ctx, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.dropItemLocked(id)
	case err != nil:
		w := &model.StaleIndexWarning{ItemID: id, Err: err}
		c.markStaleLocked(w)
		return w
	default:
		c.applyItemLocked(*it)
	}
	c.search.purge()
	return nil
}

// reconcile reacts to a failed backend mutation. Domain errors that hint
// at drift trigger a resync; unexpected errors leave the write's outcome
// unknown, so the catalog is marked for reload.
func (c *Catalog) reconcile(ctx context.Context, id string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrAlreadyClaimed),
		errors.Is(err, model.ErrInvalidClaim):
		c.resync(ctx, id)
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrForbidden):
	default:
		c.markStale(&model.StaleIndexWarning{ItemID: id, Err: err})
	}
}

// applyItemLocked installs a copy of it and updates the indexes for the
// axes that changed.
func (c *Catalog) applyItemLocked(it model.WishItem) {
	cur := it.Clone()
	if old, ok := c.items[cur.ID]; ok {
		c.idx.replace(old, &cur)
	} else {
		c.idx.insert(&cur)
	}
	c.items[cur.ID] = &cur
}

func (c *Catalog) dropItemLocked(id string) {
	if old, ok := c.items[id]; ok {
		c.idx.remove(old)
		delete(c.items, id)
	}
}

// rebuildLocked recomputes every index from the item set. Known items keep
// their positions; added ids are appended in the order given.
func (c *Catalog) rebuildLocked(added []string) {
	start := time.Now()
	list := make([]*model.WishItem, 0, len(c.items))
	for _, id := range append(c.idx.all(), added...) {
		if it, ok := c.items[id]; ok {
			list = append(list, it)
		}
	}
	c.idx = rebuildIndex(c.idx, list)
	IndexRebuildDuration.Observe(time.Since(start).Seconds())
}

// item returns a copy of the catalog's item.
func (c *Catalog) item(id string) (model.WishItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	if !ok {
		return model.WishItem{}, false
	}
	return it.Clone(), true
}

func requireOwner(viewer model.Viewer, action string) error {
	if !viewer.IsOwner() {
		return fmt.Errorf("%s: %w", action, model.ErrForbidden)
	}
	return nil
}

// checkCollections verifies every id names an existing collection.
func (c *Catalog) checkCollections(ids []string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range ids {
		if _, ok := c.collections[id]; !ok {
			return &model.ValidationError{Field: "collection_ids", Message: fmt.Sprintf("unknown collection %q", id)}
		}
	}
	return nil
}

// Add validates and stores a new item and returns the stored record.
func (c *Catalog) Add(ctx context.Context, viewer model.Viewer, item model.WishItem) (*model.WishItem, error) {
	if err := requireOwner(viewer, "adding item"); err != nil {
		return nil, err
	}
	item = model.NormalizeItem(item)
	item.ID = ""
	item.Reservation = nil
	if err := model.ValidateItem(item); err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.checkCollections(item.CollectionIDs); err != nil {
		return nil, err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = c.now().UTC()
	}

	created, err := c.backend.CreateItem(ctx, item)
	if err != nil {
		if !errors.Is(err, model.ErrValidation) && !errors.Is(err, model.ErrNotFound) {
			c.markStale(&model.StaleIndexWarning{Err: err})
		}
		return nil, fmt.Errorf("adding item: %w", err)
	}

	c.mu.Lock()
	c.applyItemLocked(*created)
	c.search.purge()
	c.mu.Unlock()

	slog.Info("item added", "item", created.ID, "name", created.Name)
	out := created.Clone()
	return &out, nil
}

// Update applies patch to an item and returns the stored record.
func (c *Catalog) Update(ctx context.Context, viewer model.Viewer, id string, patch model.ItemPatch) (*model.WishItem, error) {
	if err := requireOwner(viewer, "updating item"); err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old, ok := c.item(id)
	if !ok {
		return nil, fmt.Errorf("updating item %s: %w", id, model.ErrNotFound)
	}
	next := model.NormalizeItem(patch.Apply(old))
	if err := model.ValidateItem(next); err != nil {
		return nil, err
	}
	if err := c.checkCollections(next.CollectionIDs); err != nil {
		return nil, err
	}

	updated, err := c.backend.UpdateItem(ctx, next)
	if err != nil {
		c.reconcile(ctx, id, err)
		return nil, fmt.Errorf("updating item %s: %w", id, err)
	}

	c.mu.Lock()
	c.applyItemLocked(*updated)
	c.search.purge()
	c.mu.Unlock()

	slog.Info("item updated", "item", id)
	out := updated.Clone()
	return &out, nil
}

// Remove deletes an item together with any reservation on it.
func (c *Catalog) Remove(ctx context.Context, viewer model.Viewer, id string) error {
	if err := requireOwner(viewer, "removing item"); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, ok := c.item(id); !ok {
		return fmt.Errorf("removing item %s: %w", id, model.ErrNotFound)
	}
	if err := c.backend.DeleteItem(ctx, id); err != nil {
		c.reconcile(ctx, id, err)
		return fmt.Errorf("removing item %s: %w", id, err)
	}

	c.mu.Lock()
	c.dropItemLocked(id)
	c.search.purge()
	c.mu.Unlock()

	slog.Info("item removed", "item", id)
	return nil
}

// Get returns the viewer's view of an item. Private items do not exist
// for anyone but the owner.
func (c *Catalog) Get(ctx context.Context, viewer model.Viewer, id string) (*ItemView, error) {
	if _, err := c.ensureFresh(ctx); err != nil {
		slog.Warn("serving possibly stale catalog", "error", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	if !ok || (it.IsPrivate && !viewer.IsOwner()) {
		return nil, fmt.Errorf("getting item %s: %w", id, model.ErrNotFound)
	}
	view := shapeView(viewer, it)
	return &view, nil
}

// Item returns a copy of the stored record regardless of visibility.
func (c *Catalog) Item(id string) (*model.WishItem, error) {
	it, ok := c.item(id)
	if !ok {
		return nil, fmt.Errorf("getting item %s: %w", id, model.ErrNotFound)
	}
	return &it, nil
}

// List returns the ids in a collection scope in insertion order. An empty
// scope or "all" lists every item.
func (c *Catalog) List(scope string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if scope == "" || scope == model.AllCollectionID {
		return c.idx.all(), nil
	}
	if _, ok := c.collections[scope]; !ok {
		return nil, fmt.Errorf("listing collection %s: %w", scope, model.ErrNotFound)
	}
	return c.idx.collection(scope), nil
}

// CollectionPatch carries a partial collection update.
type CollectionPatch struct {
	Name      *string `json:"name,omitempty"`
	Icon      *string `json:"icon,omitempty"`
	IsDefault *bool   `json:"is_default,omitempty"`
}

// CreateCollection stores a new collection.
func (c *Catalog) CreateCollection(ctx context.Context, viewer model.Viewer, col model.Collection) (*model.Collection, error) {
	if err := requireOwner(viewer, "creating collection"); err != nil {
		return nil, err
	}
	col.Name = strings.TrimSpace(col.Name)
	if col.Name == "" {
		return nil, &model.ValidationError{Field: "name", Message: "name required"}
	}
	if col.ID == model.AllCollectionID {
		return nil, &model.ValidationError{Field: "id", Message: "the all collection is reserved"}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	created, err := c.backend.CreateCollection(ctx, col)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	c.mu.Lock()
	stored := *created
	stored.ItemCount = 0
	c.collections[stored.ID] = &stored
	c.collOrder = append(c.collOrder, stored.ID)
	c.mu.Unlock()

	slog.Info("collection created", "collection", stored.ID, "name", stored.Name)
	return &stored, nil
}

// UpdateCollection renames a collection or changes its icon or default flag.
func (c *Catalog) UpdateCollection(ctx context.Context, viewer model.Viewer, id string, patch CollectionPatch) (*model.Collection, error) {
	if err := requireOwner(viewer, "updating collection"); err != nil {
		return nil, err
	}
	if id == model.AllCollectionID {
		return nil, &model.ValidationError{Field: "id", Message: "the all collection cannot be changed"}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	cur, ok := c.collections[id]
	var next model.Collection
	if ok {
		next = *cur
	}
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("updating collection %s: %w", id, model.ErrNotFound)
	}

	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Icon != nil {
		next.Icon = *patch.Icon
	}
	if patch.IsDefault != nil {
		next.IsDefault = *patch.IsDefault
	}
	if next.Name == "" {
		return nil, &model.ValidationError{Field: "name", Message: "name required"}
	}

	if _, err := c.backend.UpdateCollection(ctx, next); err != nil {
		return nil, fmt.Errorf("updating collection %s: %w", id, err)
	}

	c.mu.Lock()
	c.collections[id] = &next
	next.ItemCount = c.idx.collectionSize(id)
	c.mu.Unlock()

	slog.Info("collection updated", "collection", id)
	return &next, nil
}

// RenameCollection changes a collection's name.
func (c *Catalog) RenameCollection(ctx context.Context, viewer model.Viewer, id, name string) (*model.Collection, error) {
	return c.UpdateCollection(ctx, viewer, id, CollectionPatch{Name: &name})
}

// DeleteCollection removes a collection and detaches it from every item.
func (c *Catalog) DeleteCollection(ctx context.Context, viewer model.Viewer, id string) error {
	if err := requireOwner(viewer, "deleting collection"); err != nil {
		return err
	}
	if id == model.AllCollectionID {
		return &model.ValidationError{Field: "id", Message: "the all collection cannot be deleted"}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	_, ok := c.collections[id]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("deleting collection %s: %w", id, model.ErrNotFound)
	}

	if err := c.backend.DeleteCollection(ctx, id); err != nil {
		return fmt.Errorf("deleting collection %s: %w", id, err)
	}

	c.mu.Lock()
	for _, itemID := range c.idx.collection(id) {
		it := c.items[itemID].Clone()
		kept := it.CollectionIDs[:0]
		for _, cid := range it.CollectionIDs {
			if cid != id {
				kept = append(kept, cid)
			}
		}
		it.CollectionIDs = kept
		c.applyItemLocked(it)
	}
	delete(c.idx.byCollection, id)
	delete(c.collections, id)
	for i, cid := range c.collOrder {
		if cid == id {
			c.collOrder = append(c.collOrder[:i], c.collOrder[i+1:]...)
			break
		}
	}
	c.search.purge()
	c.mu.Unlock()

	slog.Info("collection deleted", "collection", id)
	return nil
}

// Collections lists the "all" pseudo-collection followed by every
// collection in creation order, each with its derived item count.
func (c *Catalog) Collections() []model.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Collection, 0, len(c.collOrder)+1)
	out = append(out, model.Collection{
		ID:        model.AllCollectionID,
		Name:      "All",
		ItemCount: c.idx.size(),
	})
	for _, id := range c.collOrder {
		col := *c.collections[id]
		col.ItemCount = c.idx.collectionSize(id)
		out = append(out, col)
	}
	return out
}

// CollectionCounts maps every collection id, and "all", to its item count.
func (c *Catalog) CollectionCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(map[string]int, len(c.collections)+1)
	counts[model.AllCollectionID] = c.idx.size()
	for id := range c.collections {
		counts[id] = c.idx.collectionSize(id)
	}
	return counts
}
