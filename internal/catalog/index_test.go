package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/dibs/internal/model"
)

func TestIndexInsertAndReplace(t *testing.T) {
	ix := newIndex()
	old := &model.WishItem{
		ID:            "x",
		Name:          "Kindle",
		Description:   "E-reader",
		DesireScore:   4,
		CategoryTags:  []string{"books"},
		CollectionIDs: []string{"tech"},
	}
	ix.insert(old)
	ix.insert(&model.WishItem{ID: "y", Name: "Lamp", DesireScore: 4, CollectionIDs: []string{"home"}})

	assert.True(t, ix.byStatus[StatusAvailable].has("x"))
	assert.True(t, ix.byStatus[StatusPublic].has("x"))
	assert.True(t, ix.bucket(4).has("x"))
	assert.Equal(t, "kindle e-reader books", ix.blob["x"])
	assert.Equal(t, "kindle", ix.names["x"])

	archived := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := &model.WishItem{
		ID:            "x",
		Name:          "Kindle Oasis",
		DesireScore:   9,
		CategoryTags:  []string{"gadgets"},
		CollectionIDs: []string{"tech", "home"},
		IsPrivate:     true,
		ArchivedAt:    &archived,
		Reservation:   &model.Reservation{ItemID: "x", ClaimantID: "a", State: model.ReservationClaimed},
	}
	ix.replace(old, cur)

	assert.True(t, ix.byCollection["tech"].has("x"))
	// Collections list in catalog order, not join order.
	assert.Equal(t, []string{"x", "y"}, ix.collection("home"))
	assert.NotContains(t, ix.byCategory, "books")
	assert.True(t, ix.byCategory["gadgets"].has("x"))
	assert.True(t, ix.byStatus[StatusClaimed].has("x"))
	assert.False(t, ix.byStatus[StatusAvailable].has("x"))
	assert.True(t, ix.byStatus[StatusPrivate].has("x"))
	assert.False(t, ix.byStatus[StatusPublic].has("x"))
	assert.False(t, ix.bucket(4).has("x"))
	assert.True(t, ix.bucket(9).has("x"))
	assert.True(t, ix.archived.has("x"))
	assert.Equal(t, "kindle oasis", ix.names["x"])
	assert.Equal(t, []string{"x", "y"}, ix.all())

	ix.remove(cur)
	assert.Equal(t, []string{"y"}, ix.all())
	assert.Equal(t, 0, ix.collectionSize("tech"))
	assert.Empty(t, ix.byStatus[StatusClaimed])
	assert.Empty(t, ix.archived)
}

func TestRebuildIndexKeepsPositions(t *testing.T) {
	a := &model.WishItem{ID: "a", Name: "A", DesireScore: 1, CollectionIDs: []string{"c"}}
	b := &model.WishItem{ID: "b", Name: "B", DesireScore: 2, CollectionIDs: []string{"c"}}
	prev := rebuildIndex(nil, []*model.WishItem{a, b})
	require.Equal(t, []string{"a", "b"}, prev.collection("c"))

	n := &model.WishItem{ID: "n", Name: "N", DesireScore: 3, CollectionIDs: []string{"c"}}
	ix := rebuildIndex(prev, []*model.WishItem{n, b, a})

	assert.Equal(t, []string{"a", "b", "n"}, ix.all())
	assert.Equal(t, []string{"a", "b", "n"}, ix.collection("c"))
	assert.Equal(t, 3, ix.collectionSize("c"))
	assert.Len(t, ix.scoreAtLeast(2), 2)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"claimed", "available", "private", "public"} {
		st, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), st)
	}
	_, err := ParseStatus("reserved")
	assert.ErrorIs(t, err, model.ErrValidation)
}
