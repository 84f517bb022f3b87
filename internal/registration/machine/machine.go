// Package machine holds the registration state for one participant and one
// hackathon, and decides which observations may change it.
//
// Transition table (current -> observation):
//
//	registered     -> registered read refreshes lastChecked; anything else is ignored
//	any            -> submission result accepted only from not_registered or cancelled
//	any            -> read issued before the latest accepted submission is stale
//	any            -> other reads replace the status wholesale
package machine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hackmate/internal/audit"
	"hackmate/internal/platform/metrics"
	"hackmate/internal/registration/models"
	dErrors "hackmate/pkg/domain-errors"
)

// Outcome describes what Apply did with an observation.
type Outcome int

const (
	OutcomeChanged Outcome = iota
	OutcomeUnchanged
	OutcomeIgnoredTerminal
	OutcomeIgnoredStale
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeChanged:
		return "changed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeIgnoredTerminal:
		return "ignored_terminal"
	case OutcomeIgnoredStale:
		return "ignored_stale"
	case OutcomeRejected:
		return "rejected"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Ticket records the write epoch at the moment a read was issued.
type Ticket struct {
	epoch uint64
}

// Journal receives one event per decision.
type Journal interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Option func(*Machine)

func WithJournal(j Journal) Option {
	return func(m *Machine) {
		m.journal = j
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = mt
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// Machine is the single owner of the registration status. All methods are
// safe for concurrent use.
type Machine struct {
	mu    sync.Mutex
	snap  models.Snapshot
	epoch uint64
	seq   uint64

	subsMu  sync.Mutex
	subs    map[int]func(models.Snapshot)
	nextSub int

	// notifyMu serialises delivery so subscribers never see an older
	// snapshot after a newer one.
	notifyMu  sync.Mutex
	delivered uint64

	journal Journal
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New starts in StatusUnresolved; the first server read establishes the
// real status.
func New(participantID, eventID string, opts ...Option) *Machine {
	m := &Machine{
		snap: models.Snapshot{
			ParticipantID: participantID,
			EventID:       eventID,
			Status:        models.StatusUnresolved,
		},
		subs:   make(map[int]func(models.Snapshot)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns a copy of the current read model.
func (m *Machine) Snapshot() models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Machine) Status() models.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Status
}

// Begin must be called before issuing a read whose result will be applied.
func (m *Machine) Begin() Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Ticket{epoch: m.epoch}
}

// CheckSubmit reports a conflict unless a new submission may start.
func (m *Machine) CheckSubmit() error {
	status := m.Status()
	if status.AllowsSubmission() {
		return nil
	}
	return dErrors.New(dErrors.CodeConflict, submitBlockedMessage(status))
}

func submitBlockedMessage(status models.Status) string {
	switch status {
	case models.StatusPending:
		return "Your payment is already under verification"
	case models.StatusRegistered:
		return "You are already registered for this hackathon"
	case models.StatusUnresolved:
		return "Registration status is still being checked"
	default:
		return "Unable to determine status, please contact support"
	}
}

// Subscribe registers fn to receive every snapshot change. fn runs outside
// the state lock; it must not call Apply and must not block for long.
func (m *Machine) Subscribe(fn func(models.Snapshot)) (cancel func()) {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

// Apply evaluates one observation against the transition table.
func (m *Machine) Apply(ctx context.Context, t Ticket, result models.PollResult) (Outcome, error) {
	report := result.Report
	if report.Status == models.StatusUnresolved || !report.Status.IsValid() {
		return OutcomeRejected, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("status %q cannot be observed", report.Status))
	}
	checkedAt := result.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}

	m.mu.Lock()
	prev := m.snap
	outcome, err := m.decideLocked(t, result)
	switch outcome {
	case OutcomeChanged:
		m.snap.Status = report.Status
		m.snap.OrderID = report.OrderID
		m.snap.Message = report.Message
		m.snap.LastChecked = checkedAt
		if result.Source == models.SourceSubmission {
			m.epoch++
		}
	case OutcomeUnchanged:
		m.snap.LastChecked = checkedAt
	}
	var next models.Snapshot
	var seq uint64
	notify := outcome == OutcomeChanged || outcome == OutcomeUnchanged
	if notify {
		m.seq++
		seq = m.seq
		next = m.snap
	}
	m.mu.Unlock()

	m.record(ctx, prev, next, result, outcome)
	if notify {
		m.deliver(seq, next)
	}
	return outcome, err
}

func (m *Machine) decideLocked(t Ticket, result models.PollResult) (Outcome, error) {
	current := m.snap
	report := result.Report

	if current.Status == models.StatusRegistered {
		if report.Status == models.StatusRegistered {
			return OutcomeUnchanged, nil
		}
		return OutcomeIgnoredTerminal, nil
	}

	if result.Source == models.SourceSubmission {
		if !current.Status.AllowsSubmission() {
			return OutcomeRejected, dErrors.New(dErrors.CodeConflict, submitBlockedMessage(current.Status))
		}
		if report.Status != models.StatusPending {
			return OutcomeRejected, dErrors.New(dErrors.CodeBadRequest,
				fmt.Sprintf("submission cannot produce status %q", report.Status))
		}
		return OutcomeChanged, nil
	}

	if t.epoch < m.epoch {
		return OutcomeIgnoredStale, nil
	}

	if current.Status == report.Status &&
		current.OrderID == report.OrderID &&
		current.Message == report.Message {
		return OutcomeUnchanged, nil
	}
	return OutcomeChanged, nil
}

func (m *Machine) record(ctx context.Context, prev, next models.Snapshot, result models.PollResult, outcome Outcome) {
	event := audit.Event{
		ParticipantID: prev.ParticipantID,
		EventID:       prev.EventID,
		Source:        string(result.Source),
		From:          prev.Status.String(),
		To:            result.Report.Status.String(),
		OrderID:       result.Report.OrderID,
	}

	switch outcome {
	case OutcomeChanged:
		m.metrics.IncrementTransitions(prev.Status.String(), next.Status.String())
		event.Action = audit.ActionStatusChanged
		if result.Source == models.SourceSubmission {
			event.Action = audit.ActionSubmissionAccepted
		}
		attrs := []any{
			"event_id", prev.EventID,
			"from", prev.Status.String(),
			"to", next.Status.String(),
			"source", string(result.Source),
		}
		if next.Status == models.StatusUnknown {
			attrs = append(attrs, "raw_status", result.Report.RawStatus)
		}
		m.logger.InfoContext(ctx, "registration_status_changed", attrs...)
	case OutcomeUnchanged:
		return
	case OutcomeIgnoredTerminal, OutcomeIgnoredStale:
		reason := "terminal"
		if outcome == OutcomeIgnoredStale {
			reason = "stale"
		}
		m.metrics.IncrementIgnoredReads(reason)
		event.Action = audit.ActionObservationIgnored
		event.Reason = reason
		m.logger.DebugContext(ctx, "registration_observation_ignored",
			"event_id", prev.EventID,
			"current", prev.Status.String(),
			"observed", result.Report.Status.String(),
			"reason", reason,
		)
	case OutcomeRejected:
		event.Action = audit.ActionSubmissionRejected
		event.Reason = "status_" + prev.Status.String()
	}

	if m.journal == nil {
		return
	}
	if err := m.journal.Emit(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "registration_journal_failed",
			"error", err,
			"action", event.Action,
		)
	}
}

func (m *Machine) deliver(seq uint64, snap models.Snapshot) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if seq <= m.delivered {
		return
	}
	m.delivered = seq

	m.subsMu.Lock()
	fns := make([]func(models.Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
