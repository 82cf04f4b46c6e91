package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch-booking-api/internal/model"
)

// Request is a raw customer submission, before normalization.
type Request struct {
	ClientName  string
	Phone       string
	Address     string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM, defaults to the slot start
	TimeSlot    string // e.g. "14:00-15:00"
	Urgency     string
	ProblemType string
	Notes       *string
	Lat         *float64
	Lng         *float64
	Source      string
}

// ValidateNewBooking checks required fields, applies defaults and returns a
// booking ready for insertion: status SCHEDULED, no technician. The slot
// conflict check happens at the store so it can ride the unique index.
func ValidateNewBooking(req Request) (*model.Booking, error) {
	required := []struct{ name, val string }{
		{"clientName", req.ClientName},
		{"phone", req.Phone},
		{"address", req.Address},
		{"date", req.Date},
		{"timeSlot", req.TimeSlot},
	}
	for _, f := range required {
		if strings.TrimSpace(f.val) == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrValidation, f.name)
		}
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}

	t := req.Time
	if t == "" {
		// slot start, e.g. "14:00" from "14:00-15:00"
		t, _, _ = strings.Cut(req.TimeSlot, "-")
	}

	urgency := model.UrgencyMedium
	if req.Urgency != "" {
		urgency, err = model.ParseUrgency(req.Urgency)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	source := req.Source
	if source == "" {
		source = "web"
	}

	return &model.Booking{
		ID:          uuid.New().String(),
		ClientName:  req.ClientName,
		Phone:       req.Phone,
		Address:     req.Address,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Date:        date,
		Time:        t,
		TimeSlot:    req.TimeSlot,
		Urgency:     urgency,
		ProblemType: req.ProblemType,
		Notes:       req.Notes,
		Source:      source,
		Status:      model.StatusScheduled,
	}, nil
}
