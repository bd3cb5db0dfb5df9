package model

import (
	"strings"
	"time"
)

// Desire score bounds.
const (
	MinDesireScore = 1
	MaxDesireScore = 10
)

// WishItem is a single entry on the wishlist.
type WishItem struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Link          string       `json:"link,omitempty"`
	ImageURL      string       `json:"image_url,omitempty"`
	DesireScore   int          `json:"desire_score"`
	CategoryTags  []string     `json:"category_tags,omitempty"`
	IsPrivate     bool         `json:"is_private"`
	CollectionIDs []string     `json:"collection_ids,omitempty"`
	Reservation   *Reservation `json:"reservation,omitempty"`
	ArchivedAt    *time.Time   `json:"archived_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Claimed reports whether the item currently carries an active claim.
func (it *WishItem) Claimed() bool {
	return it.Reservation != nil && it.Reservation.State == ReservationClaimed
}

// Archived reports whether the item has been archived.
func (it *WishItem) Archived() bool {
	return it.ArchivedAt != nil
}

// InCollection reports whether the item belongs to the given collection.
func (it *WishItem) InCollection(id string) bool {
	for _, c := range it.CollectionIDs {
		if c == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with the catalog.
func (it WishItem) Clone() WishItem {
	out := it
	out.CategoryTags = append([]string(nil), it.CategoryTags...)
	out.CollectionIDs = append([]string(nil), it.CollectionIDs...)
	if it.Reservation != nil {
		r := *it.Reservation
		out.Reservation = &r
	}
	if it.ArchivedAt != nil {
		t := *it.ArchivedAt
		out.ArchivedAt = &t
	}
	return out
}

// ItemPatch carries a partial update. Nil fields are left untouched.
type ItemPatch struct {
	Name          *string   `json:"name,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Link          *string   `json:"link,omitempty"`
	ImageURL      *string   `json:"image_url,omitempty"`
	DesireScore   *int      `json:"desire_score,omitempty"`
	CategoryTags  *[]string `json:"category_tags,omitempty"`
	IsPrivate     *bool     `json:"is_private,omitempty"`
	CollectionIDs *[]string `json:"collection_ids,omitempty"`
}

// Apply returns a copy of item with the patch applied.
func (p ItemPatch) Apply(item WishItem) WishItem {
	out := item.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Link != nil {
		out.Link = *p.Link
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	if p.DesireScore != nil {
		out.DesireScore = *p.DesireScore
	}
	if p.CategoryTags != nil {
		out.CategoryTags = NormalizeTags(*p.CategoryTags)
	}
	if p.IsPrivate != nil {
		out.IsPrivate = *p.IsPrivate
	}
	if p.CollectionIDs != nil {
		out.CollectionIDs = dedupe(*p.CollectionIDs)
	}
	return out
}

// ValidateItem checks the fields an owner controls.
func ValidateItem(item WishItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return &ValidationError{Field: "name", Message: "name required"}
	}
	if item.DesireScore < MinDesireScore || item.DesireScore > MaxDesireScore {
		return &ValidationError{Field: "desire_score", Message: "desire score must be between 1 and 10"}
	}
	for _, c := range item.CollectionIDs {
		if c == AllCollectionID {
			return &ValidationError{Field: "collection_ids", Message: "items cannot be assigned to the all collection"}
		}
	}
	return nil
}

// NormalizeTags lowercases, trims and dedupes category tags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return dedupe(out)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// NormalizeItem trims the name and cleans up tags and collection ids.
func NormalizeItem(item WishItem) WishItem {
	out := item.Clone()
	out.Name = strings.TrimSpace(out.Name)
	out.CategoryTags = NormalizeTags(out.CategoryTags)
	out.CollectionIDs = dedupe(out.CollectionIDs)
	return out
}
