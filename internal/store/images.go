package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SetItemImage stores an item's display image and thumbnail.
func SetItemImage(ctx context.Context, db *sql.DB, itemID string, image, thumbnail []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO item_images (item_id, image, thumbnail, mime) VALUES (?, ?, ?, ?)
		 ON CONFLICT (item_id) DO UPDATE SET image = excluded.image, thumbnail = excluded.thumbnail, mime = excluded.mime`,
		itemID, image, thumbnail, mime,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image (or thumbnail) and MIME type.
// A nil slice means the item has no image.
func GetItemImage(ctx context.Context, db *sql.DB, itemID string, thumbnail bool) ([]byte, string, error) {
	column := "image"
	if thumbnail {
		column = "thumbnail"
	}

	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT `+column+`, mime FROM item_images WHERE item_id = ?`, itemID,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return data, mime, nil
}
