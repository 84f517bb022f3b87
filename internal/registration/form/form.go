// Package form implements the payment capture form: contact fields, the
// transaction reference and the proof-of-payment image, validated locally
// before anything is sent.
package form

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"hackmate/internal/registration/models"
	"hackmate/pkg/validation"
)

// DefaultMaxProofBytes is the proof image size limit when none is configured.
const DefaultMaxProofBytes int64 = 5 * 1024 * 1024

// Field names used in FieldError.Field.
const (
	FieldName                 = "name"
	FieldPhone                = "phone"
	FieldEmail                = "email"
	FieldTransactionReference = "transaction_reference"
	FieldProofImage           = "proof_image"
)

// FieldError is the field-scoped failure returned by Validate and SelectImage.
type FieldError = validation.FieldError

// Fields are the text inputs of the form.
type Fields struct {
	Name                 string `json:"name" validate:"notblank"`
	Phone                string `json:"phone" validate:"notblank,phone"`
	Email                string `json:"email" validate:"notblank"`
	TransactionReference string `json:"transaction_reference" validate:"notblank"`
}

type Option func(*Form)

// WithMaxProofBytes overrides the proof image size limit.
func WithMaxProofBytes(n int64) Option {
	return func(f *Form) {
		if n > 0 {
			f.maxProofBytes = n
		}
	}
}

// WithPreviews sets the preview allocator. Defaults to an unmetered MemoryPreviews.
func WithPreviews(p Previews) Option {
	return func(f *Form) {
		if p != nil {
			f.previews = p
		}
	}
}

// WithClock overrides the clock used for generated references and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(f *Form) {
		if now != nil {
			f.now = now
		}
	}
}

// WithReferenceGenerator overrides the default reference generator.
func WithReferenceGenerator(gen func(time.Time) string) Option {
	return func(f *Form) {
		if gen != nil {
			f.newReference = gen
		}
	}
}

// Form holds one payment attempt being composed. It is safe for concurrent
// use; the session may reset it from a polling goroutine.
type Form struct {
	mu            sync.Mutex
	identity      models.Participant
	fields        Fields
	proof         *models.ProofImage
	preview       Preview
	previews      Previews
	maxProofBytes int64
	now           func() time.Time
	newReference  func(time.Time) string
}

// New returns a form pre-filled from identity with a generated reference.
func New(identity models.Participant, opts ...Option) *Form {
	f := &Form{
		identity:      identity,
		maxProofBytes: DefaultMaxProofBytes,
		now:           time.Now,
		newReference:  GenerateReference,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.previews == nil {
		f.previews = NewMemoryPreviews(nil)
	}
	f.fields = f.initialFields()
	return f
}

func (f *Form) initialFields() Fields {
	return Fields{
		Name:                 f.identity.Name,
		Phone:                f.identity.Phone,
		Email:                f.identity.Email,
		TransactionReference: f.newReference(f.now()),
	}
}

func (f *Form) SetName(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields.Name = v
}

func (f *Form) SetPhone(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields.Phone = v
}

func (f *Form) SetEmail(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields.Email = v
}

func (f *Form) SetTransactionReference(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields.TransactionReference = v
}

// RegenerateReference replaces the reference with a freshly generated one.
func (f *Form) RegenerateReference() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields.TransactionReference = f.newReference(f.now())
	return f.fields.TransactionReference
}

// Fields returns a copy of the current text inputs.
func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Preview returns the handle for the selected image, zero when none.
func (f *Form) Preview() Preview {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preview
}

// HasProof reports whether an image is selected.
func (f *Form) HasProof() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proof != nil
}

// MaxProofBytes returns the configured image size limit.
func (f *Form) MaxProofBytes() int64 {
	return f.maxProofBytes
}

// SelectImage validates img and makes it the proof. The previous preview is
// released before the new one is allocated. A rejected image leaves the
// current selection untouched.
func (f *Form) SelectImage(img models.ProofImage) (Preview, error) {
	if err := f.checkProof(&img); err != nil {
		return Preview{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.releasePreviewLocked()
	f.proof = nil

	preview, err := f.previews.Allocate(img)
	if err != nil {
		return Preview{}, validation.NewFieldError(FieldProofImage, "Could not load the selected image")
	}
	stored := img
	stored.Data = make([]byte, len(img.Data))
	copy(stored.Data, img.Data)
	f.proof = &stored
	f.preview = preview
	return preview, nil
}

// RemoveImage clears the selected proof and releases its preview.
func (f *Form) RemoveImage() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releasePreviewLocked()
	f.proof = nil
}

// Reset restores every field to its initial value, issues a new reference and
// releases the preview.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releasePreviewLocked()
	f.proof = nil
	f.fields = f.initialFields()
}

func (f *Form) releasePreviewLocked() {
	if !f.preview.IsZero() {
		f.previews.Release(f.preview)
		f.preview = Preview{}
	}
}

// Validate checks every input and reports the first failing field.
func (f *Form) Validate() error {
	f.mu.Lock()
	fields := f.fields
	proof := f.proof
	f.mu.Unlock()

	if err := validation.Validate(fields); err != nil {
		return err
	}
	if proof == nil {
		return validation.NewFieldError(FieldProofImage, "Please upload a screenshot of your payment")
	}
	return f.checkProof(proof)
}

// Build validates the form and returns the immutable submission for one attempt.
func (f *Form) Build(eventID, participantID string, amount int64) (*models.PaymentSubmission, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.proof == nil {
		return nil, validation.NewFieldError(FieldProofImage, "Please upload a screenshot of your payment")
	}
	data := make([]byte, len(f.proof.Data))
	copy(data, f.proof.Data)
	return &models.PaymentSubmission{
		EventID:              eventID,
		ParticipantID:        participantID,
		Name:                 strings.TrimSpace(f.fields.Name),
		Phone:                strings.TrimSpace(f.fields.Phone),
		Email:                strings.TrimSpace(f.fields.Email),
		TransactionReference: strings.TrimSpace(f.fields.TransactionReference),
		Amount:               amount,
		Proof: models.ProofImage{
			Filename:    f.proof.Filename,
			ContentType: f.proof.ContentType,
			Data:        data,
		},
		CreatedAt: f.now(),
	}, nil
}

// checkProof enforces size and image type. The declared type and the sniffed
// content must both be image/*; a missing declared type is filled from the sniff.
func (f *Form) checkProof(img *models.ProofImage) error {
	if img.Size() == 0 {
		return validation.NewFieldError(FieldProofImage, "Please upload a screenshot of your payment")
	}
	if img.Size() > f.maxProofBytes {
		return validation.NewFieldError(FieldProofImage,
			fmt.Sprintf("Image is too large (max %s)", formatBytes(f.maxProofBytes)))
	}
	if img.ContentType != "" && !isImageType(img.ContentType) {
		return validation.NewFieldError(FieldProofImage, "Please upload a valid image file")
	}
	detected := mimetype.Detect(img.Data)
	if !isImageType(detected.String()) {
		return validation.NewFieldError(FieldProofImage, "Please upload a valid image file")
	}
	if img.ContentType == "" {
		img.ContentType = detected.String()
	}
	return nil
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
