// Package seed imports an initial wishlist from a YAML file.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/dibs/internal/catalog"
	"github.com/erazemk/dibs/internal/model"
)

// File is the seed file layout.
//
//	collections:
//	  - id: tech
//	    name: Tech
//	items:
//	  - name: Kindle Paperwhite
//	    score: 8
//	    tags: [reading]
//	    collections: [tech]
type File struct {
	Collections []Collection `yaml:"collections"`
	Items       []Item       `yaml:"items"`
}

// Collection is a seeded collection. ID is optional; items refer to
// collections by it.
type Collection struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Icon      string `yaml:"icon"`
	IsDefault bool   `yaml:"default"`
}

// Item is a seeded wishlist item.
type Item struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Link        string   `yaml:"link"`
	ImageURL    string   `yaml:"image_url"`
	Score       int      `yaml:"score"`
	Tags        []string `yaml:"tags"`
	Private     bool     `yaml:"private"`
	Collections []string `yaml:"collections"`
}

// Result summarizes an import.
type Result struct {
	Collections int
	Items       int
	Skipped     bool
}

// Parse decodes a seed file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	for i, it := range f.Items {
		if it.Score == 0 {
			f.Items[i].Score = model.MinDesireScore
		}
	}
	return &f, nil
}

// ImportFile reads path and imports it.
func ImportFile(ctx context.Context, c *catalog.Catalog, owner model.Viewer, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Import(ctx, c, owner, f)
}

// Import adds the seed's collections and items to an empty catalog. A
// catalog that already holds items or collections is left untouched.
func Import(ctx context.Context, c *catalog.Catalog, owner model.Viewer, f *File) (*Result, error) {
	counts := c.CollectionCounts()
	if counts[model.AllCollectionID] > 0 || len(counts) > 1 {
		slog.Info("catalog not empty, skipping seed import")
		return &Result{Skipped: true}, nil
	}

	res := &Result{}
	ids := make(map[string]string, len(f.Collections))
	for _, col := range f.Collections {
		created, err := c.CreateCollection(ctx, owner, model.Collection{
			ID:        col.ID,
			Name:      col.Name,
			Icon:      col.Icon,
			IsDefault: col.IsDefault,
		})
		if err != nil {
			return res, fmt.Errorf("seeding collection %q: %w", col.Name, err)
		}
		if col.ID != "" {
			ids[col.ID] = created.ID
		}
		ids[col.Name] = created.ID
		res.Collections++
	}

	for _, it := range f.Items {
		colls := make([]string, 0, len(it.Collections))
		for _, ref := range it.Collections {
			id, ok := ids[ref]
			if !ok {
				return res, fmt.Errorf("seeding item %q: unknown collection %q", it.Name, ref)
			}
			colls = append(colls, id)
		}
		_, err := c.Add(ctx, owner, model.WishItem{
			Name:          it.Name,
			Description:   it.Description,
			Link:          it.Link,
			ImageURL:      it.ImageURL,
			DesireScore:   it.Score,
			CategoryTags:  it.Tags,
			IsPrivate:     it.Private,
			CollectionIDs: colls,
		})
		if err != nil {
			return res, fmt.Errorf("seeding item %q: %w", it.Name, err)
		}
		res.Items++
	}

	slog.Info("seed imported", "collections", res.Collections, "items", res.Items)
	return res, nil
}
