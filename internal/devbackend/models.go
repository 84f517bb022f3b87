// Package devbackend is an in-memory registration backend that speaks the
// same contract as the production API. It exists for local runs of regwatch
// and for end-to-end tests; nothing in it is durable.
package devbackend

import (
	"time"

	"hackmate/internal/registration/models"
)

// Server-side status strings. Submissions land in StatusPendingVerification
// and a reviewer moves them on.
const (
	StatusNotRegistered       = "not_registered"
	StatusPendingVerification = "pending_verification"
	StatusRegistered          = "registered"
	StatusPaymentFailed       = "payment_failed"
)

const (
	DuplicateMessage = "You have already registered for this hackathon with this email."
	SubmittedMessage = "Payment submitted! Verification typically takes up to 24 hours."
)

// Registration is one stored payment submission and its review state.
type Registration struct {
	OrderID              string
	EventID              string
	ParticipantID        string
	Name                 string
	Email                string
	Phone                string
	TransactionReference string
	Amount               int64
	ProofContentType     string
	ProofSize            int64
	ProofSHA256          string
	Status               string
	Message              string
	ReviewedBy           string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Active reports whether the registration blocks a new submission for the
// same event. Only a failed or cancelled payment frees the slot.
func (r *Registration) Active() bool {
	s, ok := models.ParseStatus(r.Status)
	if !ok {
		return true
	}
	return s != models.StatusCancelled
}

// SubmitInput is a decoded multipart payment submission.
type SubmitInput struct {
	EventID              string `json:"eventId" validate:"required,notblank"`
	ParticipantID        string `json:"participantId" validate:"required,notblank"`
	Name                 string `json:"name" validate:"required,notblank"`
	Phone                string `json:"phone" validate:"required,phone"`
	Email                string `json:"email" validate:"required,email"`
	TransactionReference string `json:"transactionReference" validate:"required,notblank,max=64"`
	Amount               int64  `json:"amount" validate:"gte=0"`
	ProofContentType     string `json:"-"`
	Proof                []byte `json:"-"`
}

// StatusView is the data object of the status and verify routes.
type StatusView struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

func viewOf(r *Registration) StatusView {
	if r == nil {
		return StatusView{Status: StatusNotRegistered}
	}
	return StatusView{Status: r.Status, OrderID: r.OrderID, Message: r.Message}
}

// HackathonView is the data object of GET /hackathons/{id}.
type HackathonView struct {
	HackathonID          string     `json:"hackathonId"`
	Name                 string     `json:"name"`
	RegistrationFee      int64      `json:"registrationFee"`
	Venue                string     `json:"venue"`
	Status               string     `json:"status"`
	RegistrationDeadline *time.Time `json:"registrationDeadline,omitempty"`
}

// ReviewRequest is the body of PUT /admin/registrations/{orderId}.
type ReviewRequest struct {
	Status  string `json:"status" validate:"required,notblank,max=32"`
	Message string `json:"message" validate:"max=500"`
}

// HackathonRequest is the body of PUT /admin/hackathons/{id}.
type HackathonRequest struct {
	Name                 string     `json:"name" validate:"required,notblank"`
	RegistrationFee      int64      `json:"registrationFee" validate:"gte=0"`
	Venue                string     `json:"venue"`
	Status               string     `json:"status" validate:"required,notblank"`
	RegistrationDeadline *time.Time `json:"registrationDeadline,omitempty"`
}
