package booking

import "errors"

// Domain errors. The HTTP layer maps these to status codes; everything else
// surfaces as a generic internal failure.
var (
	ErrValidation        = errors.New("validation failed")
	ErrSlotTaken         = errors.New("slot already booked")
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflicting assignment")
)
