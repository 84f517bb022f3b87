package hackathon

import (
	"strings"
	"time"
)

// Status is the lifecycle stage of a hackathon as published by the backend.
type Status string

const (
	StatusRegistrationOpen   Status = "registration_open"
	StatusRegistrationClosed Status = "registration_closed"
	StatusOngoing            Status = "ongoing"
	StatusWinnerToAnnounce   Status = "winner_to_announced"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// ParseStatus normalises a backend string. Unknown values are kept verbatim
// and never accept registrations.
func ParseStatus(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// Details is the event metadata the registration flow needs: fee, venue and
// whether registrations are open.
type Details struct {
	ID                   string
	Name                 string
	RegistrationFee      int64
	Venue                string
	Status               Status
	RegistrationDeadline time.Time
	FetchedAt            time.Time
}

// AcceptsRegistrations reports whether a participant may join at now.
func (d *Details) AcceptsRegistrations(now time.Time) bool {
	if d == nil || d.Status != StatusRegistrationOpen {
		return false
	}
	return d.RegistrationDeadline.IsZero() || now.Before(d.RegistrationDeadline)
}
