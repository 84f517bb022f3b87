package testutil

import (
	"time"

	"hackmate/internal/registration/models"
)

// TestIDs are stable identifiers for registration tests.
var TestIDs = struct {
	ParticipantID1 string
	ParticipantID2 string
	EventID1       string
	EventID2       string
}{
	ParticipantID1: "11111111-1111-1111-1111-111111111111",
	ParticipantID2: "22222222-2222-2222-2222-222222222222",
	EventID1:       "hack-aaaa-0001",
	EventID2:       "hack-aaaa-0002",
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// PNGProof returns a proof image of size bytes whose content sniffs as image/png.
func PNGProof(size int) models.ProofImage {
	if size < len(pngSignature) {
		size = len(pngSignature)
	}
	data := make([]byte, size)
	copy(data, pngSignature)
	return models.ProofImage{Filename: "payment.png", ContentType: "image/png", Data: data}
}

// ParticipantBuilder provides a fluent interface for building test participants.
type ParticipantBuilder struct {
	p models.Participant
}

func NewParticipantBuilder() *ParticipantBuilder {
	return &ParticipantBuilder{
		p: models.Participant{
			ID:    TestIDs.ParticipantID1,
			Email: "asha@example.com",
			Name:  "Asha Rao",
			Phone: "9876543210",
		},
	}
}

func (b *ParticipantBuilder) WithID(id string) *ParticipantBuilder {
	b.p.ID = id
	return b
}

func (b *ParticipantBuilder) WithEmail(email string) *ParticipantBuilder {
	b.p.Email = email
	return b
}

func (b *ParticipantBuilder) WithToken(token string) *ParticipantBuilder {
	b.p.Token = token
	return b
}

func (b *ParticipantBuilder) Build() models.Participant {
	return b.p
}

// NewSubmission returns a complete submission for participant and event.
func NewSubmission(participant models.Participant, eventID string) *models.PaymentSubmission {
	return &models.PaymentSubmission{
		EventID:              eventID,
		ParticipantID:        participant.ID,
		Name:                 participant.Name,
		Phone:                participant.Phone,
		Email:                participant.Email,
		TransactionReference: "UTR1761000000123",
		Amount:               499,
		Proof:                PNGProof(1024),
		CreatedAt:            time.Now(),
	}
}

// StatusReport is a shorthand for a backend read.
func StatusReport(status models.Status, orderID string) *models.StatusReport {
	return &models.StatusReport{Status: status, RawStatus: string(status), OrderID: orderID}
}
