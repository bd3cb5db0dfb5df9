package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erazemk/dibs/internal/model"
)

// DefaultCacheSize is the number of rankings kept by the search cache.
const DefaultCacheSize = 100

// Scoring weights.
const (
	phraseScore    = 20
	nameTermScore  = 10
	otherTermScore = 3
)

// Match is one ranked search hit.
type Match struct {
	ID    string
	Score int
}

// searchEngine ranks items against a normalized query and remembers
// whole-catalog rankings per phrase.
type searchEngine struct {
	cache *lru.Cache[string, []Match]
}

func newSearchEngine(size int) (*searchEngine, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []Match](size)
	if err != nil {
		return nil, fmt.Errorf("creating search cache: %w", err)
	}
	return &searchEngine{cache: cache}, nil
}

// normalizeQuery lowercases and splits raw, returning the single-spaced
// phrase and its terms.
func normalizeQuery(raw string) (string, []string) {
	terms := strings.Fields(strings.ToLower(raw))
	return strings.Join(terms, " "), terms
}

// noFilter reports whether a normalized phrase is too short to search.
func noFilter(phrase string) bool {
	return utf8.RuneCountInString(phrase) <= 1
}

func scoreItem(phrase string, terms []string, name, blob string) int {
	score := 0
	if strings.Contains(blob, phrase) {
		score += phraseScore
	}
	for _, term := range terms {
		switch {
		case strings.Contains(name, term):
			score += nameTermScore
		case strings.Contains(blob, term):
			score += otherTermScore
		}
	}
	return score
}

// rank returns the whole-catalog ranking for phrase. Lookups use Peek so
// that eviction order stays oldest-inserted. Callers hold the catalog's
// read lock, which keeps an insert from racing a purge.
func (e *searchEngine) rank(ix *index, phrase string, terms []string) []Match {
	if cached, ok := e.cache.Peek(phrase); ok {
		SearchCacheRequests.WithLabelValues("hit").Inc()
		return cached
	}
	SearchCacheRequests.WithLabelValues("miss").Inc()

	var out []Match
	for _, id := range ix.all() {
		if s := scoreItem(phrase, terms, ix.names[id], ix.blob[id]); s > 0 {
			out = append(out, Match{ID: id, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	e.cache.Add(phrase, out)
	return out
}

func (e *searchEngine) purge() {
	e.cache.Purge()
}

// Search ranks the ids in scope against query. A query of at most one
// character returns scope unchanged with zero scores.
func (c *Catalog) Search(query string, scope []string) []Match {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.searchLocked(query, scope)
}

func (c *Catalog) searchLocked(query string, scope []string) []Match {
	phrase, terms := normalizeQuery(query)
	if noFilter(phrase) {
		out := make([]Match, len(scope))
		for i, id := range scope {
			out[i] = Match{ID: id}
		}
		return out
	}
	in := toSet(scope)
	var out []Match
	for _, m := range c.search.rank(c.idx, phrase, terms) {
		if in.has(m.ID) {
			out = append(out, m)
		}
	}
	return out
}

// Session orders the searches of one client. Only the result of the most
// recently issued request is delivered.
type Session struct {
	latest atomic.Uint64
}

// Begin registers a request and returns its sequence number. A zero seq
// allocates the next number; a client-supplied seq only ever moves the
// session forward.
func (s *Session) Begin(seq uint64) uint64 {
	if seq == 0 {
		return s.latest.Add(1)
	}
	for {
		cur := s.latest.Load()
		if seq <= cur || s.latest.CompareAndSwap(cur, seq) {
			return seq
		}
	}
}

// Current reports whether seq is still the newest request.
func (s *Session) Current(seq uint64) bool {
	return s.latest.Load() == seq
}

// ListItems runs q for the request numbered seq and discards the result
// with model.ErrSuperseded if a newer request was issued meanwhile.
func (s *Session) ListItems(ctx context.Context, c *Catalog, viewer model.Viewer, q Query, seq uint64) (*ListResult, error) {
	if !s.Current(seq) {
		return nil, model.ErrSuperseded
	}
	res := c.ListItems(ctx, viewer, q)
	if !s.Current(seq) {
		return nil, model.ErrSuperseded
	}
	return res, nil
}
