package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/dibs/internal/model"
)

const itemColumns = `id, name, description, link, image_url, desire_score, is_private, archived_at, created_at, updated_at`

// CreateItem inserts an item together with its tags and collection memberships.
// An empty ID is replaced with a fresh UUID.
func CreateItem(ctx context.Context, db *sql.DB, item model.WishItem) (*model.WishItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Description, item.Link, item.ImageURL, item.DesireScore,
		item.IsPrivate, item.ArchivedAt, item.CreatedAt.UTC(), item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	if err := writeItemRelations(ctx, tx, item); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, item.ID)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.WishItem, error) {
	item := &model.WishItem{}
	err := db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	).Scan(itemFields(item)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	items := []model.WishItem{*item}
	if err := loadItemRelations(ctx, db, items, `WHERE item_id = ?`, id); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListItems returns every item in insertion order with tags, collections
// and reservations populated.
func ListItems(ctx context.Context, db *sql.DB) ([]model.WishItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.WishItem
	for rows.Next() {
		var item model.WishItem
		if err := rows.Scan(itemFields(&item)...); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	rows.Close()

	if err := loadItemRelations(ctx, db, items, ""); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItem overwrites an item's mutable fields, tags and collections.
// Reservations are not touched; use ClaimItem and ReleaseItem for those.
func UpdateItem(ctx context.Context, db *sql.DB, item model.WishItem) (*model.WishItem, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, link = ?, image_url = ?, desire_score = ?,
		        is_private = ?, archived_at = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name, item.Description, item.Link, item.ImageURL, item.DesireScore,
		item.IsPrivate, item.ArchivedAt, time.Now().UTC(), item.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("item %s: %w", item.ID, model.ErrNotFound)
	}

	for _, q := range []string{
		`DELETE FROM item_tags WHERE item_id = ?`,
		`DELETE FROM item_collections WHERE item_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, item.ID); err != nil {
			return nil, fmt.Errorf("clearing item relations: %w", err)
		}
	}
	if err := writeItemRelations(ctx, tx, item); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}

	return GetItem(ctx, db, item.ID)
}

// DeleteItem removes an item. Tags, memberships, images and any
// reservation are removed with it.
func DeleteItem(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func itemFields(item *model.WishItem) []any {
	return []any{
		&item.ID, &item.Name, &item.Description, &item.Link, &item.ImageURL, &item.DesireScore,
		&item.IsPrivate, &item.ArchivedAt, &item.CreatedAt, &item.UpdatedAt,
	}
}

func writeItemRelations(ctx context.Context, tx *sql.Tx, item model.WishItem) error {
	for i, tag := range model.NormalizeTags(item.CategoryTags) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_tags (item_id, tag, position) VALUES (?, ?, ?)`,
			item.ID, tag, i,
		); err != nil {
			return fmt.Errorf("adding item tag: %w", err)
		}
	}

	for i, cid := range item.CollectionIDs {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE id = ?`, cid).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking collection: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("collection %s: %w", cid, model.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_collections (item_id, collection_id, position) VALUES (?, ?, ?)`,
			item.ID, cid, i,
		); err != nil {
			return fmt.Errorf("adding item to collection: %w", err)
		}
	}
	return nil
}

// loadItemRelations fills tags, collection ids and reservations for items.
// filter is an optional WHERE clause on item_id shared by all three queries.
func loadItemRelations(ctx context.Context, db *sql.DB, items []model.WishItem, filter string, args ...any) error {
	byID := make(map[string]*model.WishItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	if err := scanPairs(ctx, db,
		`SELECT item_id, tag FROM item_tags `+filter+` ORDER BY item_id, position`, args,
		func(itemID, tag string) {
			if it := byID[itemID]; it != nil {
				it.CategoryTags = append(it.CategoryTags, tag)
			}
		},
	); err != nil {
		return fmt.Errorf("loading item tags: %w", err)
	}

	if err := scanPairs(ctx, db,
		`SELECT item_id, collection_id FROM item_collections `+filter+` ORDER BY item_id, position`, args,
		func(itemID, cid string) {
			if it := byID[itemID]; it != nil {
				it.CollectionIDs = append(it.CollectionIDs, cid)
			}
		},
	); err != nil {
		return fmt.Errorf("loading item collections: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT item_id, claimant_id, claimed_at FROM reservations `+filter, args...,
	)
	if err != nil {
		return fmt.Errorf("loading reservations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r := model.Reservation{State: model.ReservationClaimed}
		if err := rows.Scan(&r.ItemID, &r.ClaimantID, &r.ClaimedAt); err != nil {
			return fmt.Errorf("scanning reservation: %w", err)
		}
		if it := byID[r.ItemID]; it != nil {
			it.Reservation = &r
		}
	}
	return rows.Err()
}

func scanPairs(ctx context.Context, db *sql.DB, query string, args []any, fn func(a, b string)) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}
		fn(a, b)
	}
	return rows.Err()
}
