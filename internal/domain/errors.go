package domain

import "errors"

// Domain validation errors.
var (
	// ErrMalformedTreaty is returned when a treaty cannot be repaired with defaults.
	ErrMalformedTreaty = errors.New("malformed treaty")

	// ErrInvalidBid is returned when a bid carries a negative or non-finite field.
	ErrInvalidBid = errors.New("invalid bid")

	// ErrInvalidParameters is returned when agent parameters are out of bounds.
	ErrInvalidParameters = errors.New("invalid agent parameters")
)
