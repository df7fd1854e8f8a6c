package models

import "errors"

var (
	// ErrNotFound covers both a missing reminder and one owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrPastInstant is returned when a resolved time is not in the future.
	ErrPastInstant = errors.New("instant is not in the future")
	// ErrUnparseable is returned when no date could be extracted.
	ErrUnparseable = errors.New("no date found")
	// ErrNoPendingDialog is returned when a follow-up arrives without a dialog.
	ErrNoPendingDialog = errors.New("no pending dialog")
	// ErrValidation marks bad input at the API boundary.
	ErrValidation = errors.New("validation error")
)
