package devbackend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"hackmate/internal/hackathon"
	"hackmate/internal/registration/models"
	dErrors "hackmate/pkg/domain-errors"
	"hackmate/pkg/platform/middleware/requesttime"
	psync "hackmate/pkg/platform/sync"
)

// statusPattern limits what a reviewer may set. Values outside the known set
// are allowed so clients can be exercised against unexpected statuses.
var statusPattern = regexp.MustCompile(`^[a-z][a-z_]{0,31}$`)

// Service holds the registration rules of the dev backend.
type Service struct {
	store  Store
	locks  *psync.ShardedMutex
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type ServiceOption func(*Service)

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceClock overrides the request-scoped clock.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOrderIDs replaces the order ID generator; tests use it for stable IDs.
func WithOrderIDs(next func() string) ServiceOption {
	return func(s *Service) {
		if next != nil {
			s.newID = next
		}
	}
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		locks:  psync.NewShardedMutex(),
		logger: slog.Default(),
		newID:  func() string { return "ord_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock(ctx context.Context) time.Time {
	if s.now != nil {
		return s.now()
	}
	return requesttime.Now(ctx)
}

// Status returns the latest registration of participantID for eventID, or
// not_registered.
func (s *Service) Status(ctx context.Context, participantID, eventID string) (StatusView, error) {
	regs, err := s.store.ListRegistrations(ctx, eventID)
	if err != nil {
		return StatusView{}, err
	}
	var latest *Registration
	for i := range regs {
		if regs[i].ParticipantID == participantID {
			latest = &regs[i]
		}
	}
	return viewOf(latest), nil
}

// Submit stores a new payment submission. Submissions for one event are
// serialized so the duplicate check and the insert cannot interleave.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Registration, error) {
	h, err := s.store.FindHackathon(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	now := s.clock(ctx)
	if !h.AcceptsRegistrations(now) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Registration is closed for this hackathon")
	}
	if in.Amount != h.RegistrationFee {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Amount does not match the registration fee")
	}

	sum := sha256.Sum256(in.Proof)
	reg := Registration{
		OrderID:              s.newID(),
		EventID:              in.EventID,
		ParticipantID:        in.ParticipantID,
		Name:                 strings.TrimSpace(in.Name),
		Email:                strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:                strings.TrimSpace(in.Phone),
		TransactionReference: strings.TrimSpace(in.TransactionReference),
		Amount:               in.Amount,
		ProofContentType:     in.ProofContentType,
		ProofSize:            int64(len(in.Proof)),
		ProofSHA256:          hex.EncodeToString(sum[:]),
		Status:               StatusPendingVerification,
		Message:              SubmittedMessage,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.locks.Do(in.EventID, func() error {
		regs, err := s.store.ListRegistrations(ctx, in.EventID)
		if err != nil {
			return err
		}
		for _, existing := range regs {
			if !existing.Active() {
				continue
			}
			if existing.Email == reg.Email || existing.ParticipantID == reg.ParticipantID {
				return dErrors.New(dErrors.CodeConflict, DuplicateMessage)
			}
			if existing.TransactionReference == reg.TransactionReference {
				return dErrors.New(dErrors.CodeConflict, "This transaction reference has already been used.")
			}
		}
		return s.store.CreateRegistration(ctx, reg)
	})
	if err != nil {
		s.logger.InfoContext(ctx, "devbackend_submission_rejected",
			"event_id", in.EventID,
			"code", string(dErrors.CodeOf(err)),
		)
		return nil, err
	}
	s.logger.InfoContext(ctx, "devbackend_submission_accepted",
		"event_id", reg.EventID,
		"order_id", reg.OrderID,
		"proof_bytes", reg.ProofSize,
	)
	return &reg, nil
}

// Verify returns the registration behind orderID. Orders of other
// participants are reported as not found.
func (s *Service) Verify(ctx context.Context, participantID, orderID string) (StatusView, error) {
	reg, err := s.store.FindRegistration(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}
	if reg.ParticipantID != participantID {
		return StatusView{}, dErrors.New(dErrors.CodeNotFound, "Order not found")
	}
	return viewOf(reg), nil
}

// Review sets the status of an order on behalf of reviewer.
func (s *Service) Review(ctx context.Context, orderID string, req ReviewRequest, reviewer string) (StatusView, error) {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !statusPattern.MatchString(status) || status == string(models.StatusUnresolved) {
		return StatusView{}, dErrors.New(dErrors.CodeValidation, "status must be a lowercase identifier")
	}
	reg, err := s.store.UpdateRegistration(ctx, orderID, func(r *Registration) error {
		r.Status = status
		r.Message = strings.TrimSpace(req.Message)
		r.ReviewedBy = reviewer
		r.UpdatedAt = s.clock(ctx)
		return nil
	})
	if err != nil {
		return StatusView{}, err
	}
	s.logger.InfoContext(ctx, "devbackend_registration_reviewed",
		"order_id", orderID,
		"status", status,
		"reviewer", reviewer,
	)
	return viewOf(reg), nil
}

func (s *Service) Hackathon(ctx context.Context, id string) (*hackathon.Details, error) {
	return s.store.FindHackathon(ctx, id)
}

// PutHackathon creates or replaces a hackathon.
func (s *Service) PutHackathon(ctx context.Context, id string, req HackathonRequest) (*hackathon.Details, error) {
	d := hackathon.Details{
		ID:              strings.TrimSpace(id),
		Name:            strings.TrimSpace(req.Name),
		RegistrationFee: req.RegistrationFee,
		Venue:           strings.TrimSpace(req.Venue),
		Status:          hackathon.ParseStatus(req.Status),
	}
	if req.RegistrationDeadline != nil {
		d.RegistrationDeadline = *req.RegistrationDeadline
	}
	if err := s.store.PutHackathon(ctx, d); err != nil {
		return nil, err
	}
	return &d, nil
}
