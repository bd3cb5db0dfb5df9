package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the catalog, the store and the API.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidClaim   = errors.New("invalid claim")
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")
	ErrSuperseded     = errors.New("superseded by a newer request")
)

// ValidationError describes a malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StaleIndexWarning is reported when derived state could not be refreshed
// after a successful mutation. It never fails the mutation itself.
type StaleIndexWarning struct {
	ItemID string
	Err    error
}

func (w *StaleIndexWarning) Error() string {
	return fmt.Sprintf("index may be stale for item %s: %v", w.ItemID, w.Err)
}

func (w *StaleIndexWarning) Unwrap() error {
	return w.Err
}
