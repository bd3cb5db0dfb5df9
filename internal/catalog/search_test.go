package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/dibs/internal/model"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		raw    string
		phrase string
		terms  []string
	}{
		{"", "", nil},
		{"   ", "", nil},
		{"Kindle", "kindle", []string{"kindle"}},
		{"  Kindle \t PAPERWHITE ", "kindle paperwhite", []string{"kindle", "paperwhite"}},
	}
	for _, tt := range tests {
		phrase, terms := normalizeQuery(tt.raw)
		assert.Equal(t, tt.phrase, phrase, tt.raw)
		assert.Equal(t, len(tt.terms), len(terms), tt.raw)
		for i := range tt.terms {
			assert.Equal(t, tt.terms[i], terms[i])
		}
	}
}

func TestScoreItem(t *testing.T) {
	tests := []struct {
		name  string
		query string
		item  string
		blob  string
		want  int
	}{
		{"phrase and name term", "kindle", "kindle paperwhite", "kindle paperwhite", 30},
		{"term only elsewhere", "noise", "headphones", "headphones noise cancelling", 23},
		{"terms split", "red lamp", "lamp", "lamp glows red", 13},
		{"no match", "kindle", "macbook pro 16\" m3", "macbook pro 16\" m3", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phrase, terms := normalizeQuery(tt.query)
			assert.Equal(t, tt.want, scoreItem(phrase, terms, tt.item, tt.blob))
		})
	}
}

func TestShortQueryMatchesEmptyQuery(t *testing.T) {
	c := newTestCatalog(t, newMemBackend(), Options{})
	ctx := context.Background()
	addItem(t, c, model.WishItem{Name: "Kindle"})
	addItem(t, c, model.WishItem{Name: "Lamp"})
	addItem(t, c, model.WishItem{Name: "Mug"})

	want := c.ListItems(ctx, owner, Query{})
	require.Len(t, want.Items, 3)
	for _, q := range []string{" ", "k", " K ", "é"} {
		got := c.ListItems(ctx, owner, Query{Search: q})
		assert.Equal(t, want.Items, got.Items, "query %q", q)
	}
	assert.Equal(t, 0, c.search.cache.Len())
}

func TestKindleScenario(t *testing.T) {
	c := newTestCatalog(t, newMemBackend(), Options{})
	addItem(t, c, model.WishItem{Name: `MacBook Pro 16" M3`})
	kindle := addItem(t, c, model.WishItem{Name: "Kindle Paperwhite"})

	res := c.ListItems(context.Background(), visitor, Query{Search: "kindle"})
	require.Len(t, res.Items, 1)
	assert.Equal(t, kindle, res.Items[0].ID)
	assert.Equal(t, "Kindle Paperwhite", res.Items[0].Name)
	assert.GreaterOrEqual(t, res.Items[0].Score, 10)
}

func TestExactNameRanksFirst(t *testing.T) {
	c := newTestCatalog(t, newMemBackend(), Options{})
	addItem(t, c, model.WishItem{Name: "Paperwhite cover for Kindle"})
	addItem(t, c, model.WishItem{Name: "Book light", Description: "works with a kindle paperwhite"})
	exact := addItem(t, c, model.WishItem{Name: "Kindle Paperwhite"})

	res := c.ListItems(context.Background(), owner, Query{Search: "Kindle Paperwhite"})
	require.Len(t, res.Items, 3)
	assert.Equal(t, exact, res.Items[0].ID)
	assert.GreaterOrEqual(t, res.Items[0].Score, 20)
	for i := 1; i < len(res.Items); i++ {
		assert.GreaterOrEqual(t, res.Items[i-1].Score, res.Items[i].Score)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	c := newTestCatalog(t, newMemBackend(), Options{})
	first := addItem(t, c, model.WishItem{Name: "Red mug"})
	second := addItem(t, c, model.WishItem{Name: "Blue mug"})
	third := addItem(t, c, model.WishItem{Name: "Green mug"})

	ids, err := c.List(model.AllCollectionID)
	require.NoError(t, err)
	matches := c.Search("mug", ids)
	require.Len(t, matches, 3)
	assert.Equal(t, []string{first, second, third}, []string{matches[0].ID, matches[1].ID, matches[2].ID})

	scoped := c.Search("mug", []string{third, first})
	require.Len(t, scoped, 2)
	assert.Equal(t, first, scoped[0].ID)
	assert.Equal(t, third, scoped[1].ID)
}

func TestSearchCacheEvictsOldestInserted(t *testing.T) {
	c := newTestCatalog(t, newMemBackend(), Options{})
	id := addItem(t, c, model.WishItem{Name: "Query target"})
	scope := []string{id}

	key := func(i int) string { return fmt.Sprintf("query %03d", i) }
	for i := 0; i < DefaultCacheSize; i++ {
		c.Search(key(i), scope)
	}
	require.Equal(t, DefaultCacheSize, c.search.cache.Len())

	hits := testutil.ToFloat64(SearchCacheRequests.WithLabelValues("hit"))
	first := c.Search(key(0), scope)
	assert.Equal(t, hits+1, testutil.ToFloat64(SearchCacheRequests.WithLabelValues("hit")))

	// The lookup above must not refresh the first entry.
	c.Search(key(DefaultCacheSize), scope)
	assert.Equal(t, DefaultCacheSize, c.search.cache.Len())
	assert.False(t, c.search.cache.Contains(key(0)))
	assert.True(t, c.search.cache.Contains(key(1)))

	misses := testutil.ToFloat64(SearchCacheRequests.WithLabelValues("miss"))
	again := c.Search(key(0), scope)
	assert.Equal(t, misses+1, testutil.ToFloat64(SearchCacheRequests.WithLabelValues("miss")))
	assert.Equal(t, first, again)
	assert.True(t, c.search.cache.Contains(key(0)))
	assert.False(t, c.search.cache.Contains(key(1)))
}

func TestCustomCacheSize(t *testing.T) {
	c := newTestCatalog(t, newMemBackend(), Options{CacheSize: 2})
	for _, q := range []string{"aa", "bb", "cc"} {
		c.Search(q, nil)
	}
	assert.Equal(t, 2, c.search.cache.Len())
	assert.False(t, c.search.cache.Contains("aa"))
}

func TestSessionDiscardsSupersededResults(t *testing.T) {
	c := newTestCatalog(t, newMemBackend(), Options{})
	ctx := context.Background()
	addItem(t, c, model.WishItem{Name: "Kindle"})

	var s Session
	older := s.Begin(0)
	newer := s.Begin(0)
	assert.Greater(t, newer, older)

	_, err := s.ListItems(ctx, c, owner, Query{Search: "ki"}, older)
	assert.ErrorIs(t, err, model.ErrSuperseded)

	res, err := s.ListItems(ctx, c, owner, Query{Search: "kindle"}, newer)
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	assert.Equal(t, uint64(10), s.Begin(10))
	stale := s.Begin(5)
	assert.False(t, s.Current(stale))
	assert.True(t, s.Current(10))
	assert.Equal(t, uint64(11), s.Begin(0))
}
