package models

import "time"

// Participant is the authenticated identity supplied by the session layer.
// Token is an opaque bearer credential; it is never logged.
type Participant struct {
	ID    string
	Email string
	Name  string
	Phone string
	Token string
}

// ProofImage is the proof-of-payment screenshot selected by the participant.
// Data is never modified after selection.
type ProofImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the image size in bytes.
func (p ProofImage) Size() int64 {
	return int64(len(p.Data))
}

// PaymentSubmission is one immutable payment attempt. A new attempt always
// builds a new value with a new transaction reference.
type PaymentSubmission struct {
	EventID              string
	ParticipantID        string
	Name                 string
	Phone                string
	Email                string
	TransactionReference string
	Amount               int64
	Proof                ProofImage
	CreatedAt            time.Time
}

// SubmitReceipt is the backend's acknowledgement of an accepted submission.
type SubmitReceipt struct {
	OrderID string
	Message string
}

// StatusReport is a decoded status read from the backend. RawStatus keeps the
// server string so unknown values can be logged.
type StatusReport struct {
	Status    Status
	RawStatus string
	OrderID   string
	Message   string
}

// Source identifies which path produced a status observation.
type Source string

const (
	SourceSubmission  Source = "submission"
	SourcePoll        Source = "poll"
	SourceManualCheck Source = "manual_check"
)

// PollResult is a point-in-time observation of registration status.
type PollResult struct {
	Report    StatusReport
	CheckedAt time.Time
	Source    Source
}

// Snapshot is the read model exposed to presentation layers.
type Snapshot struct {
	ParticipantID string
	EventID       string
	Status        Status
	OrderID       string
	Message       string
	LastChecked   time.Time
}

// HasChecked reports whether the snapshot reflects at least one server read.
func (s Snapshot) HasChecked() bool {
	return !s.LastChecked.IsZero()
}
