package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/erazemk/dibs/internal/model"
)

// Sort orders accepted when no search term is given.
const (
	SortAdded  = ""
	SortScore  = "score"
	SortName   = "name"
	SortNewest = "newest"
)

// Query describes one listing request. Zero fields apply no filter.
type Query struct {
	Collection string
	Category   string
	Status     string
	MinScore   int
	Search     string
	Archived   bool
	Sort       string
}

// ListResult is the outcome of ListItems. Failures never surface as
// errors: they produce an empty, degraded result instead. Warnings carries
// the stale-index warnings settled by the reload this read triggered.
type ListResult struct {
	Items         []ItemView `json:"items"`
	FilteredCount int        `json:"filtered_count"`
	TotalCount    int        `json:"total_count"`
	Degraded      bool       `json:"degraded,omitempty"`
	Error         string     `json:"error,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// ListItems runs the filter pipeline for viewer: visibility, collection,
// category, status, minimum score, archived state and finally search,
// which also sets the order.
func (c *Catalog) ListItems(ctx context.Context, viewer model.Viewer, q Query) *ListResult {
	settled, err := c.ensureFresh(ctx)
	if err != nil {
		res := Degraded(fmt.Errorf("reloading catalog: %w", err))
		res.Warnings = settled
		return res
	}
	if err := checkSort(q.Sort); err != nil {
		return Degraded(err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.idx.all()
	if !viewer.IsOwner() {
		ids = keep(ids, c.idx.byStatus[StatusPublic])
	}
	total := len(ids)

	if q.Collection != "" && q.Collection != model.AllCollectionID {
		if _, ok := c.collections[q.Collection]; !ok {
			return Degraded(fmt.Errorf("collection %s: %w", q.Collection, model.ErrNotFound))
		}
		ids = keep(ids, c.idx.byCollection[q.Collection])
	}

	if tag := strings.ToLower(strings.TrimSpace(q.Category)); tag != "" {
		ids = keep(ids, c.idx.byCategory[tag])
	}

	if q.Status != "" {
		st, err := ParseStatus(q.Status)
		if err != nil {
			return Degraded(err)
		}
		ids = keep(ids, c.idx.byStatus[st])
	}

	if q.MinScore != 0 {
		if q.MinScore < model.MinDesireScore || q.MinScore > model.MaxDesireScore {
			return Degraded(&model.ValidationError{Field: "min_score", Message: "minimum score must be between 1 and 10"})
		}
		ids = keep(ids, c.idx.scoreAtLeast(q.MinScore))
	}

	ids = keepFunc(ids, func(id string) bool { return c.idx.archived.has(id) == q.Archived })

	matches := c.searchLocked(q.Search, ids)
	if phrase, _ := normalizeQuery(q.Search); noFilter(phrase) {
		c.sortLocked(matches, q.Sort)
	}

	res := &ListResult{
		Items:      make([]ItemView, 0, len(matches)),
		TotalCount: total,
		Warnings:   append(settled, c.warnings...),
	}
	for _, m := range matches {
		view := shapeView(viewer, c.items[m.ID])
		view.Score = m.Score
		res.Items = append(res.Items, view)
	}
	res.FilteredCount = len(res.Items)
	return res
}

// checkSort rejects unknown sort orders whether or not a search term
// overrides them.
func checkSort(order string) error {
	switch order {
	case SortAdded, SortScore, SortName, SortNewest:
		return nil
	}
	return &model.ValidationError{Field: "sort", Message: "sort must be score, name or newest"}
}

func (c *Catalog) sortLocked(matches []Match, order string) {
	switch order {
	case SortScore:
		sort.SliceStable(matches, func(i, j int) bool {
			return c.items[matches[i].ID].DesireScore > c.items[matches[j].ID].DesireScore
		})
	case SortName:
		sort.SliceStable(matches, func(i, j int) bool {
			return c.idx.names[matches[i].ID] < c.idx.names[matches[j].ID]
		})
	case SortNewest:
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}
}

// Degraded returns the empty result served when a listing cannot run.
func Degraded(err error) *ListResult {
	slog.Warn("listing degraded", "error", err)
	return &ListResult{Items: []ItemView{}, Degraded: true, Error: err.Error()}
}

func keep(ids []string, set idSet) []string {
	return keepFunc(ids, set.has)
}

func keepFunc(ids []string, ok func(string) bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if ok(id) {
			out = append(out, id)
		}
	}
	return out
}
