package service

import (
	"context"

	"hackmate/internal/audit"
	"hackmate/internal/hackathon"
	"hackmate/internal/registration/models"
)

// Backend is the registration and payment API.
type Backend interface {
	FetchStatus(ctx context.Context, participantID, eventID string) (*models.StatusReport, error)
	SubmitPayment(ctx context.Context, sub *models.PaymentSubmission) (*models.SubmitReceipt, error)
	VerifyStatus(ctx context.Context, orderID, participantID string) (*models.StatusReport, error)
}

// HackathonSource provides event metadata (fee, venue, registration window).
type HackathonSource interface {
	FetchDetails(ctx context.Context, id string) (*hackathon.Details, error)
}

// Notifier is the toast surface. Messages are short and participant-facing.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator is told once when the participant becomes registered.
type Navigator interface {
	Registered(eventID string)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
