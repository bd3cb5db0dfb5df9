package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/dibs/internal/model"
)

// ClaimItem records a claim on an item. The insert only succeeds when no
// claim exists, so concurrent claimers race on the primary key and exactly
// one wins; the others get model.ErrAlreadyClaimed.
func ClaimItem(ctx context.Context, db *sql.DB, itemID, claimantID string, at time.Time) (*model.Reservation, error) {
	if claimantID == "" {
		return nil, fmt.Errorf("claimant required: %w", model.ErrForbidden)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var private bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_private FROM items WHERE id = ?`, itemID,
	).Scan(&private)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %s: %w", itemID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}
	if private {
		return nil, fmt.Errorf("item %s is private: %w", itemID, model.ErrInvalidClaim)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (item_id, claimant_id, claimed_at) VALUES (?, ?, ?)
		 ON CONFLICT (item_id) DO NOTHING`,
		itemID, claimantID, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("claiming item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, model.ErrAlreadyClaimed)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	return GetReservation(ctx, db, itemID)
}

// ReleaseItem removes a claim. When claimantID is non-empty only that
// claimant's record is removed. Returns whether a claim was removed.
func ReleaseItem(ctx context.Context, db *sql.DB, itemID, claimantID string) (bool, error) {
	var result sql.Result
	var err error
	if claimantID != "" {
		result, err = db.ExecContext(ctx,
			`DELETE FROM reservations WHERE item_id = ? AND claimant_id = ?`, itemID, claimantID,
		)
	} else {
		result, err = db.ExecContext(ctx,
			`DELETE FROM reservations WHERE item_id = ?`, itemID,
		)
	}
	if err != nil {
		return false, fmt.Errorf("releasing item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n > 0, nil
}

// GetReservation returns the reservation state of an item. Items without a
// claim report an available record; unknown items return nil.
func GetReservation(ctx context.Context, db *sql.DB, itemID string) (*model.Reservation, error) {
	var exists int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE id = ?`, itemID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	r := &model.Reservation{ItemID: itemID, State: model.ReservationClaimed}
	err := db.QueryRowContext(ctx,
		`SELECT claimant_id, claimed_at FROM reservations WHERE item_id = ?`, itemID,
	).Scan(&r.ClaimantID, &r.ClaimedAt)
	if err == sql.ErrNoRows {
		return model.AvailableReservation(itemID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting reservation: %w", err)
	}
	return r, nil
}

// ListClaimsBy returns the ids of items claimed by a viewer.
func ListClaimsBy(ctx context.Context, db *sql.DB, claimantID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT item_id FROM reservations WHERE claimant_id = ? ORDER BY claimed_at`, claimantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
