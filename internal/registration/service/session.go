// Package service binds the capture form, the backend client, the state
// machine and both polling loops into one registration session for a single
// participant and hackathon.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"hackmate/internal/hackathon"
	"hackmate/internal/platform/metrics"
	"hackmate/internal/registration/client"
	"hackmate/internal/registration/form"
	"hackmate/internal/registration/machine"
	"hackmate/internal/registration/models"
	"hackmate/internal/registration/poller"
	"hackmate/internal/registration/presenter"
	dErrors "hackmate/pkg/domain-errors"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks Backend,HackathonSource,Notifier,Navigator,AuditPublisher

// Loop names, used in logs and the poller_degraded metric.
const (
	LoopPaymentStatus   = "payment_status"
	LoopHackathonDetail = "hackathon_detail"
)

// Config identifies the session and sets both cadences.
type Config struct {
	Participant           models.Participant
	EventID               string
	PaymentPollInterval   time.Duration
	DetailRefreshInterval time.Duration
	DegradedPollInterval  time.Duration
	MaxProofBytes         int64
}

// Session is the registration flow for one participant and one hackathon.
// Commands are safe to call from any goroutine.
type Session struct {
	cfg        Config
	backend    Backend
	hackathons HackathonSource
	notifier   Notifier
	navigator  Navigator
	journal    AuditPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	newTicker  poller.TickerFactory
	previews   form.Previews
	now        func() time.Time

	form    *form.Form
	machine *machine.Machine

	submitting atomic.Bool
	checking   atomic.Bool
	checks     singleflight.Group
	navigated  atomic.Bool

	mu          sync.Mutex
	mounted     bool
	mountCtx    context.Context
	cancel      context.CancelFunc
	group       *errgroup.Group
	unsubscribe func()

	detailsMu sync.RWMutex
	details   *hackathon.Details
}

type Option func(*Session)

func WithHackathonSource(h HackathonSource) Option {
	return func(s *Session) { s.hackathons = h }
}

func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

func WithNavigator(n Navigator) Option {
	return func(s *Session) { s.navigator = n }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Session) { s.journal = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithTickerFactory replaces real tickers in both loops; tests pass fakes.
func WithTickerFactory(f poller.TickerFactory) Option {
	return func(s *Session) { s.newTicker = f }
}

func WithPreviews(p form.Previews) Option {
	return func(s *Session) { s.previews = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a session. The initial status is unresolved until Mount reads it.
func New(cfg Config, backend Backend, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Participant.ID == "" || cfg.EventID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "participant and event are required")
	}
	s := &Session{
		cfg:     cfg,
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}

	formOpts := []form.Option{
		form.WithMaxProofBytes(cfg.MaxProofBytes),
		form.WithClock(s.now),
	}
	if s.previews != nil {
		formOpts = append(formOpts, form.WithPreviews(s.previews))
	} else {
		formOpts = append(formOpts, form.WithPreviews(form.NewMemoryPreviews(s.metrics)))
	}
	s.form = form.New(cfg.Participant, formOpts...)

	machineOpts := []machine.Option{
		machine.WithLogger(s.logger),
		machine.WithMetrics(s.metrics),
	}
	if s.journal != nil {
		machineOpts = append(machineOpts, machine.WithJournal(s.journal))
	}
	s.machine = machine.New(cfg.Participant.ID, cfg.EventID, machineOpts...)
	return s, nil
}

// Form is the capture form owned by this session.
func (s *Session) Form() *form.Form {
	return s.form
}

func (s *Session) Snapshot() models.Snapshot {
	return s.machine.Snapshot()
}

// Details returns the last hackathon details read, or nil.
func (s *Session) Details() *hackathon.Details {
	s.detailsMu.RLock()
	defer s.detailsMu.RUnlock()
	return s.details
}

// Submitting reports whether a submission is in flight.
func (s *Session) Submitting() bool {
	return s.submitting.Load()
}

// Checking reports whether a manual re-check is in flight.
func (s *Session) Checking() bool {
	return s.checking.Load()
}

// Subscribe forwards every snapshot change to fn until cancel is called.
func (s *Session) Subscribe(fn func(models.Snapshot)) (cancel func()) {
	return s.machine.Subscribe(fn)
}

// View renders the current state for a presentation layer.
func (s *Session) View() presenter.View {
	return presenter.Render(presenter.Input{
		Snapshot:   s.machine.Snapshot(),
		Details:    s.Details(),
		Submitting: s.Submitting(),
		Checking:   s.Checking(),
		Now:        s.now(),
	})
}

// bind derives a command context that is also cancelled by Unmount.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	mounted, mountCtx := s.mounted, s.mountCtx
	s.mu.Unlock()
	if !mounted {
		return ctx, func() {}, errNotMounted()
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(mountCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

// Mount reads the status immediately and starts both polling loops. Calling
// Mount on a mounted session is a no-op.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(loopCtx)

	s.unsubscribe = s.machine.Subscribe(s.onSnapshot)

	statusLoop := poller.New(LoopPaymentStatus,
		func(ctx context.Context) error { return s.refresh(ctx, models.SourcePoll) },
		s.loopOptions(s.cfg.PaymentPollInterval,
			poller.WithStopWhen(func() bool { return s.machine.Status().IsTerminal() }),
		)...,
	)
	group.Go(func() error { return s.runLoop(groupCtx, statusLoop) })

	if s.hackathons != nil {
		detailLoop := poller.New(LoopHackathonDetail, s.refreshDetails,
			s.loopOptions(s.cfg.DetailRefreshInterval)...,
		)
		group.Go(func() error { return s.runLoop(groupCtx, detailLoop) })
	}

	s.mountCtx = loopCtx
	s.cancel = cancel
	s.group = group
	s.mounted = true
	s.logger.InfoContext(ctx, "registration_session_mounted", "event_id", s.cfg.EventID)
	return nil
}

func (s *Session) loopOptions(interval time.Duration, extra ...poller.Option) []poller.Option {
	opts := []poller.Option{
		poller.WithInterval(interval),
		poller.WithDegradedInterval(s.cfg.DegradedPollInterval),
		poller.WithLogger(s.logger),
		poller.WithMetrics(s.metrics),
	}
	if s.newTicker != nil {
		opts = append(opts, poller.WithTickerFactory(s.newTicker))
	}
	return append(opts, extra...)
}

// runLoop treats cancellation as a clean exit so errgroup does not cancel the
// sibling loop when one finishes normally.
func (s *Session) runLoop(ctx context.Context, l *poller.Loop) error {
	err := l.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		s.logger.DebugContext(ctx, "registration_loop_stopped", "loop", l.Name())
		return nil
	}
	return err
}

// Unmount stops both loops, waits for them to exit and releases the preview.
// A submission or manual check still in flight has its context cancelled, so
// no backend call outlives the session.
func (s *Session) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	cancel, group, unsubscribe := s.cancel, s.group, s.unsubscribe
	s.mounted = false
	s.mountCtx, s.cancel, s.group, s.unsubscribe = nil, nil, nil, nil
	s.mu.Unlock()

	cancel()
	if err := group.Wait(); err != nil {
		s.logger.Warn("registration_loop_failed", "error", err)
	}
	unsubscribe()
	s.form.RemoveImage()
	s.logger.Info("registration_session_unmounted", "event_id", s.cfg.EventID)
}

// refresh reads the status with GET and applies it.
func (s *Session) refresh(ctx context.Context, source models.Source) error {
	ticket := s.machine.Begin()
	report, err := s.backend.FetchStatus(ctx, s.cfg.Participant.ID, s.cfg.EventID)
	if err != nil {
		s.metrics.IncrementPolls(string(source), "error")
		return err
	}
	s.metrics.IncrementPolls(string(source), "ok")
	s.apply(ctx, ticket, report, source)
	return nil
}

func (s *Session) apply(ctx context.Context, ticket machine.Ticket, report *models.StatusReport, source models.Source) machine.Outcome {
	outcome, err := s.machine.Apply(ctx, ticket, models.PollResult{
		Report:    *report,
		CheckedAt: s.now(),
		Source:    source,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "registration_observation_rejected",
			"source", string(source),
			"status", report.RawStatus,
			"error", err,
		)
	}
	return outcome
}

func (s *Session) refreshDetails(ctx context.Context) error {
	d, err := s.hackathons.FetchDetails(ctx, s.cfg.EventID)
	if err != nil {
		s.metrics.IncrementPolls("detail", "error")
		return err
	}
	s.metrics.IncrementPolls("detail", "ok")
	s.detailsMu.Lock()
	s.details = d
	s.detailsMu.Unlock()
	return nil
}

func (s *Session) onSnapshot(snap models.Snapshot) {
	if snap.Status != models.StatusRegistered || !s.navigated.CompareAndSwap(false, true) {
		return
	}
	s.form.Reset()
	if s.navigator != nil {
		s.navigator.Registered(s.cfg.EventID)
	}
}

// Submit validates the form and sends one payment submission. A second call
// while the first is in flight fails with ErrSubmissionInFlight and makes no
// network call. There is no automatic retry.
func (s *Session) Submit(ctx context.Context) error {
	ctx, release, err := s.bind(ctx)
	if err != nil {
		return err
	}
	defer release()
	if !s.submitting.CompareAndSwap(false, true) {
		s.metrics.IncrementSubmissions("in_flight")
		return errSubmissionInFlight()
	}
	defer s.submitting.Store(false)

	if err := s.machine.CheckSubmit(); err != nil {
		s.metrics.IncrementSubmissions("blocked")
		return err
	}

	details, err := s.detailsForSubmit(ctx)
	if err != nil {
		s.metrics.IncrementSubmissions("blocked")
		return err
	}
	sub, err := s.form.Build(s.cfg.EventID, s.cfg.Participant.ID, details.RegistrationFee)
	if err != nil {
		s.metrics.IncrementSubmissions("invalid")
		return err
	}

	receipt, err := s.backend.SubmitPayment(ctx, sub)
	if err != nil {
		s.metrics.IncrementSubmissions("failed")
		s.logger.WarnContext(ctx, "registration_submit_failed",
			"event_id", s.cfg.EventID,
			"category", string(client.GetCategory(err)),
			"error", err,
		)
		domainErr := client.ToDomainError(err, msgSubmitFailed)
		if ctx.Err() == nil {
			s.notifier.Error(domainErr.Error())
		}
		return domainErr
	}

	msg := receipt.Message
	if msg == "" {
		msg = msgSubmitted
	}
	report := &models.StatusReport{
		Status:    models.StatusPending,
		RawStatus: string(models.StatusPending),
		OrderID:   receipt.OrderID,
		Message:   msg,
	}
	outcome, err := s.machine.Apply(ctx, s.machine.Begin(), models.PollResult{
		Report:    *report,
		CheckedAt: s.now(),
		Source:    models.SourceSubmission,
	})
	if err != nil {
		// The backend accepted it but local state moved on; the next read
		// reconciles.
		s.logger.WarnContext(ctx, "registration_submit_not_applied",
			"order_id", receipt.OrderID,
			"outcome", outcome.String(),
			"error", err,
		)
	}

	s.metrics.IncrementSubmissions("accepted")
	s.form.Reset()
	s.notifier.Success(msg)
	return nil
}

// detailsForSubmit returns the hackathon details the amount is taken from,
// reading them now when the detail loop has not landed yet.
func (s *Session) detailsForSubmit(ctx context.Context) (*hackathon.Details, error) {
	if d := s.Details(); d != nil {
		return d, nil
	}
	if s.hackathons == nil {
		return nil, errDetailsUnavailable(nil)
	}
	if err := s.refreshDetails(ctx); err != nil {
		s.logger.WarnContext(ctx, "registration_details_unavailable",
			"event_id", s.cfg.EventID,
			"error", err,
		)
		return nil, errDetailsUnavailable(err)
	}
	return s.Details(), nil
}

// Retry reopens the form with a fresh transaction reference after a
// cancelled registration. The status stays cancelled until a new submission
// is accepted.
func (s *Session) Retry() error {
	if s.machine.Status() != models.StatusCancelled {
		return errRetryNotAllowed()
	}
	s.form.Reset()
	return nil
}

// ForceRecheck reads the status now. Overlapping calls share one request.
// Failures are surfaced once through the notifier and returned.
func (s *Session) ForceRecheck(ctx context.Context) (models.Snapshot, error) {
	ctx, release, err := s.bind(ctx)
	if err != nil {
		return s.machine.Snapshot(), err
	}
	defer release()
	key := s.cfg.Participant.ID + "/" + s.cfg.EventID
	_, err, _ = s.checks.Do(key, func() (any, error) {
		s.checking.Store(true)
		defer s.checking.Store(false)
		return nil, s.recheck(ctx)
	})
	return s.machine.Snapshot(), err
}

// recheck verifies a known order, or falls back to a plain status read.
func (s *Session) recheck(ctx context.Context) error {
	snap := s.machine.Snapshot()
	ticket := s.machine.Begin()

	var (
		report *models.StatusReport
		err    error
	)
	if snap.OrderID != "" {
		report, err = s.backend.VerifyStatus(ctx, snap.OrderID, s.cfg.Participant.ID)
	} else {
		report, err = s.backend.FetchStatus(ctx, s.cfg.Participant.ID, s.cfg.EventID)
	}
	if err != nil {
		s.metrics.IncrementPolls(string(models.SourceManualCheck), "error")
		s.logger.WarnContext(ctx, "registration_manual_check_failed",
			"event_id", s.cfg.EventID,
			"error", err,
		)
		domainErr := client.ToDomainError(err, msgCheckFailed)
		if ctx.Err() == nil {
			s.notifier.Error(domainErr.Error())
		}
		return domainErr
	}
	s.metrics.IncrementPolls(string(models.SourceManualCheck), "ok")

	outcome := s.apply(ctx, ticket, report, models.SourceManualCheck)
	switch {
	case report.Status == models.StatusRegistered && snap.Status != models.StatusRegistered && outcome == machine.OutcomeChanged:
		s.notifier.Success(msgVerifiedRegistered)
	case report.Status == models.StatusPending && outcome == machine.OutcomeUnchanged:
		s.notifier.Success(msgStillPending)
	}
	return nil
}

type discardNotifier struct{}

func (discardNotifier) Success(string) {}
func (discardNotifier) Error(string)   {}
