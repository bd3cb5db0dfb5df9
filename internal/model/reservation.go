package model

import "time"

// ReservationState is the claim state of an item.
type ReservationState string

// Reservation states.
const (
	ReservationAvailable ReservationState = "available"
	ReservationClaimed   ReservationState = "claimed"
)

// Reservation records who claimed an item and when.
type Reservation struct {
	ItemID     string           `json:"item_id"`
	ClaimantID string           `json:"claimant_id,omitempty"`
	ClaimedAt  time.Time        `json:"claimed_at,omitempty"`
	State      ReservationState `json:"state"`
}

// AvailableReservation returns the record for an unclaimed item.
func AvailableReservation(itemID string) *Reservation {
	return &Reservation{ItemID: itemID, State: ReservationAvailable}
}
