package models

import "strings"

// Status is the registration state of one participant for one hackathon.
type Status string

const (
	StatusNotRegistered Status = "not_registered"
	StatusPending       Status = "pending"
	StatusRegistered    Status = "registered"
	StatusCancelled     Status = "cancelled"

	// StatusUnresolved is held until the first server read completes. It is
	// never sent to or accepted from the backend.
	StatusUnresolved Status = "unresolved"
	// StatusUnknown marks a server status string this client cannot map.
	StatusUnknown Status = "unknown"
)

// serverStatuses maps every status string the backend is known to emit.
// The aliases come from the status endpoint's pending-order and failed-order
// branches.
var serverStatuses = map[string]Status{
	"not_registered":       StatusNotRegistered,
	"pending":              StatusPending,
	"pending_verification": StatusPending,
	"pending_payment":      StatusPending,
	"registered":           StatusRegistered,
	"cancelled":            StatusCancelled,
	"payment_failed":       StatusCancelled,
}

// ParseStatus maps a backend status string. Unrecognised values return
// StatusUnknown and false; callers must not guess a state from them.
func ParseStatus(raw string) (Status, bool) {
	s, ok := serverStatuses[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return StatusUnknown, false
	}
	return s, true
}

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotRegistered, StatusPending, StatusRegistered, StatusCancelled,
		StatusUnresolved, StatusUnknown:
		return true
	}
	return false
}

// IsTerminal reports whether no further automatic transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusRegistered
}

// AllowsSubmission reports whether a new payment submission may start from s.
func (s Status) AllowsSubmission() bool {
	return s == StatusNotRegistered || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}
