package model

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %q", s)
	}
}

// Terminal statuses have no outgoing transitions and do not occupy a slot.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

func ParseUrgency(s string) (Urgency, error) {
	switch Urgency(s) {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return Urgency(s), nil
	default:
		return "", fmt.Errorf("unknown urgency: %q", s)
	}
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TechnicianSummary is the subset of User embedded in booking responses.
type TechnicianSummary struct {
	ID    string
	Name  string
	Phone string
}

type Booking struct {
	ID           string
	ClientName   string
	Phone        string
	Address      string
	Lat          *float64
	Lng          *float64
	Date         time.Time
	Time         string
	TimeSlot     string
	Urgency      Urgency
	ProblemType  string
	Notes        *string
	Source       string
	Status       Status
	TechnicianID *string
	Technician   *TechnicianSummary
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
