package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/dibs/internal/model"
)

var (
	owner   = model.Viewer{ID: "owner-1", Role: model.RoleOwner}
	alice   = model.Viewer{ID: "friend-alice", Role: model.RoleFriend}
	bob     = model.Viewer{ID: "friend-bob", Role: model.RoleFriend}
	visitor = model.Viewer{ID: "visitor-1", Role: model.RoleVisitor}
	nobody  = model.Viewer{}
)

// memBackend is an in-memory Backend with hooks for injecting delays,
// failures and changes made behind the catalog's back.
type memBackend struct {
	mu          sync.Mutex
	items       map[string]model.WishItem
	order       []string
	collections []model.Collection
	nextID      int

	getErr      error
	loadErr     error
	updateDelay map[string]time.Duration
	deleteErr   map[string]error
	getCalls    int
}

func newMemBackend() *memBackend {
	return &memBackend{
		items:       make(map[string]model.WishItem),
		updateDelay: make(map[string]time.Duration),
		deleteErr:   make(map[string]error),
	}
}

func (b *memBackend) LoadItems(ctx context.Context) ([]model.WishItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	out := make([]model.WishItem, 0, len(b.order))
	for _, id := range b.order {
		if it, ok := b.items[id]; ok {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (b *memBackend) LoadCollections(ctx context.Context) ([]model.Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return append([]model.Collection(nil), b.collections...), nil
}

func (b *memBackend) GetItem(ctx context.Context, id string) (*model.WishItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getCalls++
	if b.getErr != nil {
		return nil, b.getErr
	}
	it, ok := b.items[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := it.Clone()
	return &cp, nil
}

func (b *memBackend) CreateItem(ctx context.Context, item model.WishItem) (*model.WishItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	item.ID = fmt.Sprintf("item-%d", b.nextID)
	item.UpdatedAt = item.CreatedAt
	b.items[item.ID] = item.Clone()
	b.order = append(b.order, item.ID)
	return &item, nil
}

func (b *memBackend) UpdateItem(ctx context.Context, item model.WishItem) (*model.WishItem, error) {
	b.mu.Lock()
	delay := b.updateDelay[item.ID]
	b.mu.Unlock()
	if delay > 0 {
		// Ignores ctx on purpose to model a backend that hangs.
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.items[item.ID]
	if !ok {
		return nil, model.ErrNotFound
	}
	item.Reservation = cur.Reservation
	b.items[item.ID] = item.Clone()
	return &item, nil
}

func (b *memBackend) DeleteItem(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := b.items[id]; !ok {
		return model.ErrNotFound
	}
	delete(b.items, id)
	return nil
}

func (b *memBackend) CreateCollection(ctx context.Context, c model.Collection) (*model.Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.ID == "" {
		b.nextID++
		c.ID = fmt.Sprintf("coll-%d", b.nextID)
	}
	b.collections = append(b.collections, c)
	return &c, nil
}

func (b *memBackend) UpdateCollection(ctx context.Context, c model.Collection) (*model.Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.collections {
		if b.collections[i].ID == c.ID {
			b.collections[i] = c
			return &c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (b *memBackend) DeleteCollection(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.collections {
		if b.collections[i].ID != id {
			continue
		}
		b.collections = append(b.collections[:i], b.collections[i+1:]...)
		for itemID, it := range b.items {
			kept := it.CollectionIDs[:0]
			for _, cid := range it.CollectionIDs {
				if cid != id {
					kept = append(kept, cid)
				}
			}
			it.CollectionIDs = kept
			b.items[itemID] = it
		}
		return nil
	}
	return model.ErrNotFound
}

func (b *memBackend) Claim(ctx context.Context, itemID, claimantID string, at time.Time) (*model.Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.items[itemID]
	switch {
	case !ok:
		return nil, model.ErrNotFound
	case it.IsPrivate:
		return nil, model.ErrInvalidClaim
	case it.Claimed():
		return nil, model.ErrAlreadyClaimed
	}
	r := &model.Reservation{ItemID: itemID, ClaimantID: claimantID, ClaimedAt: at, State: model.ReservationClaimed}
	cp := *r
	it.Reservation = &cp
	b.items[itemID] = it
	return r, nil
}

func (b *memBackend) Release(ctx context.Context, itemID, claimantID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.items[itemID]
	if !ok {
		return false, model.ErrNotFound
	}
	if !it.Claimed() || (claimantID != "" && it.Reservation.ClaimantID != claimantID) {
		return false, nil
	}
	it.Reservation = nil
	b.items[itemID] = it
	return true, nil
}

// stealClaim records a claim the catalog has not seen.
func (b *memBackend) stealClaim(itemID, claimantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it := b.items[itemID]
	it.Reservation = &model.Reservation{ItemID: itemID, ClaimantID: claimantID, State: model.ReservationClaimed}
	b.items[itemID] = it
}

func (b *memBackend) setGetErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getErr = err
}

func (b *memBackend) setLoadErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadErr = err
}

var errBackendDown = errors.New("backend unavailable")

func newTestCatalog(t *testing.T, b Backend, opts Options) *Catalog {
	t.Helper()
	if opts.Now == nil {
		base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		opts.Now = func() time.Time { return base }
	}
	c, err := New(b, opts)
	require.NoError(t, err)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func addCollection(t *testing.T, c *Catalog, name string) string {
	t.Helper()
	col, err := c.CreateCollection(context.Background(), owner, model.Collection{Name: name})
	require.NoError(t, err)
	return col.ID
}

func addItem(t *testing.T, c *Catalog, item model.WishItem) string {
	t.Helper()
	if item.DesireScore == 0 {
		item.DesireScore = 5
	}
	created, err := c.Add(context.Background(), owner, item)
	require.NoError(t, err)
	return created.ID
}

// requireCountsConsistent checks that every derived collection count
// matches a direct count over the items.
func requireCountsConsistent(t *testing.T, c *Catalog) {
	t.Helper()
	counts := c.CollectionCounts()

	c.mu.RLock()
	defer c.mu.RUnlock()
	want := map[string]int{model.AllCollectionID: len(c.items)}
	for id := range c.collections {
		want[id] = 0
	}
	for _, it := range c.items {
		for _, cid := range it.CollectionIDs {
			want[cid]++
		}
	}
	require.Equal(t, want, counts)
}
