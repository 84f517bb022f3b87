package audit

import "time"

// Event journals one decision taken by the registration state machine. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp     time.Time
	ParticipantID string
	EventID       string
	Action        string
	Source        string
	From          string
	To            string
	OrderID       string
	Reason        string
}

// Actions recorded by the registration flow.
const (
	ActionStatusChanged      = "status_changed"
	ActionStatusRefreshed    = "status_refreshed"
	ActionObservationIgnored = "observation_ignored"
	ActionSubmissionAccepted = "submission_accepted"
	ActionSubmissionRejected = "submission_rejected"
)
