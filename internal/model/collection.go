package model

// AllCollectionID is the pseudo-collection that contains every item.
const AllCollectionID = "all"

// Collection is a user-defined grouping of items. ItemCount is derived.
type Collection struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	ItemCount int    `json:"item_count"`
	IsDefault bool   `json:"is_default"`
}
