package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/dibs/internal/model"
)

type filterFixture struct {
	c                          *Catalog
	tech, books                string
	kindle, novel, secret, old string
	drone                      string
}

func newFilterFixture(t *testing.T) filterFixture {
	t.Helper()
	c := newTestCatalog(t, newMemBackend(), Options{})
	ctx := context.Background()
	f := filterFixture{c: c}
	f.tech = addCollection(t, c, "Tech")
	f.books = addCollection(t, c, "Books")

	f.kindle = addItem(t, c, model.WishItem{Name: "Kindle Paperwhite", DesireScore: 8,
		CategoryTags: []string{"gadgets", "reading"}, CollectionIDs: []string{f.tech, f.books}})
	f.novel = addItem(t, c, model.WishItem{Name: "a novel", DesireScore: 3,
		CategoryTags: []string{"reading"}, CollectionIDs: []string{f.books}})
	f.secret = addItem(t, c, model.WishItem{Name: "Secret gift", DesireScore: 10,
		IsPrivate: true, CollectionIDs: []string{f.tech}})
	f.old = addItem(t, c, model.WishItem{Name: "Old kindle", DesireScore: 6, CollectionIDs: []string{f.tech}})
	f.drone = addItem(t, c, model.WishItem{Name: "Drone", DesireScore: 9,
		CategoryTags: []string{"gadgets"}, CollectionIDs: []string{f.tech}})

	_, err := c.BulkApply(ctx, owner, BulkRequest{Kind: BulkArchive, ItemIDs: []string{f.old}})
	require.NoError(t, err)
	_, err = c.Claim(ctx, alice, f.drone)
	require.NoError(t, err)
	return f
}

func ids(views []ItemView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestListItemsFacets(t *testing.T) {
	f := newFilterFixture(t)

	tests := []struct {
		name   string
		viewer model.Viewer
		query  Query
		want   []string
	}{
		{"owner sees everything active", owner, Query{}, []string{f.kindle, f.novel, f.secret, f.drone}},
		{"friends never see private items", alice, Query{}, []string{f.kindle, f.novel, f.drone}},
		{"all is identity", visitor, Query{Collection: model.AllCollectionID}, []string{f.kindle, f.novel, f.drone}},
		{"collection scope", owner, Query{Collection: f.books}, []string{f.kindle, f.novel}},
		{"category", owner, Query{Category: "Gadgets"}, []string{f.kindle, f.drone}},
		{"unknown category", owner, Query{Category: "garden"}, []string{}},
		{"claimed", owner, Query{Status: "claimed"}, []string{f.drone}},
		{"available", alice, Query{Status: "available"}, []string{f.kindle, f.novel}},
		{"private", owner, Query{Status: "private"}, []string{f.secret}},
		{"private hidden from friends", bob, Query{Status: "private"}, []string{}},
		{"public", owner, Query{Status: "public"}, []string{f.kindle, f.novel, f.drone}},
		{"min score unions buckets", owner, Query{MinScore: 8}, []string{f.kindle, f.secret, f.drone}},
		{"archived only", owner, Query{Archived: true}, []string{f.old}},
		{"combined", owner, Query{Collection: f.tech, Category: "gadgets", Status: "available", MinScore: 5}, []string{f.kindle}},
		{"search runs last", owner, Query{Search: "kindle"}, []string{f.kindle}},
		{"search in archive", owner, Query{Search: "kindle", Archived: true}, []string{f.old}},
		{"search within scope", owner, Query{Collection: f.books, Search: "novel"}, []string{f.novel}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.c.ListItems(context.Background(), tt.viewer, tt.query)
			require.False(t, res.Degraded, res.Error)
			assert.Equal(t, tt.want, ids(res.Items))
			assert.Equal(t, len(tt.want), res.FilteredCount)
		})
	}
}

func TestListItemsTotalCount(t *testing.T) {
	f := newFilterFixture(t)
	ctx := context.Background()

	assert.Equal(t, 5, f.c.ListItems(ctx, owner, Query{Collection: f.books}).TotalCount)
	assert.Equal(t, 4, f.c.ListItems(ctx, alice, Query{Search: "kindle"}).TotalCount)
}

func TestListItemsSortOrders(t *testing.T) {
	f := newFilterFixture(t)
	ctx := context.Background()

	tests := []struct {
		sort string
		want []string
	}{
		{SortAdded, []string{f.kindle, f.novel, f.secret, f.drone}},
		{SortScore, []string{f.secret, f.drone, f.kindle, f.novel}},
		{SortName, []string{f.novel, f.drone, f.kindle, f.secret}},
		{SortNewest, []string{f.drone, f.secret, f.novel, f.kindle}},
	}
	for _, tt := range tests {
		res := f.c.ListItems(ctx, owner, Query{Sort: tt.sort})
		assert.Equal(t, tt.want, ids(res.Items), "sort %q", tt.sort)
	}

	// A search term decides the order on its own.
	res := f.c.ListItems(ctx, owner, Query{Search: "kindle paperwhite", Sort: SortNewest})
	assert.Equal(t, []string{f.kindle}, ids(res.Items))
}

func TestListItemsDegrades(t *testing.T) {
	f := newFilterFixture(t)
	ctx := context.Background()

	for _, q := range []Query{
		{Collection: "missing"},
		{Status: "reserved"},
		{MinScore: 11},
		{MinScore: -1},
		{Sort: "price"},
		{Sort: "price", Search: "kindle"},
	} {
		res := f.c.ListItems(ctx, owner, q)
		assert.True(t, res.Degraded, "%+v", q)
		assert.NotEmpty(t, res.Error)
		assert.Empty(t, res.Items)
		assert.NotNil(t, res.Items)
	}
}

func TestCollectionScopeOrderMatchesList(t *testing.T) {
	b := newMemBackend()
	c := newTestCatalog(t, b, Options{})
	ctx := context.Background()
	home := addCollection(t, c, "Home")

	lamp := addItem(t, c, model.WishItem{Name: "Lamp"})
	rug := addItem(t, c, model.WishItem{Name: "Rug", CollectionIDs: []string{home}})
	// The lamp joins the collection after the rug but was added first.
	_, err := c.Update(ctx, owner, lamp, model.ItemPatch{CollectionIDs: &[]string{home}})
	require.NoError(t, err)

	want := []string{lamp, rug}
	listed, err := c.List(home)
	require.NoError(t, err)
	assert.Equal(t, want, listed)
	assert.Equal(t, want, ids(c.ListItems(ctx, owner, Query{Collection: home}).Items))

	require.NoError(t, c.Load(ctx))
	listed, err = c.List(home)
	require.NoError(t, err)
	assert.Equal(t, want, listed)
	assert.Equal(t, want, ids(c.ListItems(ctx, owner, Query{Collection: home}).Items))
}
