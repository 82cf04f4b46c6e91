package booking

import (
	"fmt"

	"dispatch-booking-api/internal/model"
)

// allowed transitions; terminal statuses have empty sets
var transitions = map[model.Status]map[model.Status]bool{
	model.StatusScheduled:  {model.StatusAccepted: true, model.StatusCancelled: true},
	model.StatusAccepted:   {model.StatusInProgress: true, model.StatusCancelled: true},
	model.StatusInProgress: {model.StatusCompleted: true},
	model.StatusCompleted:  {},
	model.StatusCancelled:  {},
}

func CanTransition(from, to model.Status) bool {
	return transitions[from][to]
}

// Transition moves b to target and returns the updated copy. On acceptance
// the acting technician is attached; a booking already assigned to someone
// else cannot be accepted by a second technician.
func Transition(b model.Booking, target model.Status, actorID string) (model.Booking, error) {
	if !CanTransition(b.Status, target) {
		return b, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}

	if target == model.StatusAccepted {
		if b.TechnicianID != nil && *b.TechnicianID != actorID {
			return b, fmt.Errorf("%w: booking already assigned to another technician", ErrConflict)
		}
		if b.TechnicianID == nil && actorID != "" {
			id := actorID
			b.TechnicianID = &id
		}
	}

	b.Status = target
	return b, nil
}
