package reservation

import "errors"

var (
	// ErrNotFound is returned when a reservation ID has no matching record.
	ErrNotFound = errors.New("reservation: not found")

	// ErrInvalidRequest is returned when a create or feasibility request is
	// missing a required field or fails basic validation.
	ErrInvalidRequest = errors.New("reservation: invalid request")
)
