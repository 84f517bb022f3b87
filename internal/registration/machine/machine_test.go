package machine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"hackmate/internal/audit"
	"hackmate/internal/platform/logger"
	"hackmate/internal/platform/metrics"
	"hackmate/internal/registration/models"
	dErrors "hackmate/pkg/domain-errors"
)

type MachineSuite struct {
	suite.Suite
	ctx      context.Context
	journal  *audit.Publisher
	metrics  *metrics.Metrics
	machine  *Machine
	received []models.Snapshot
	mu       sync.Mutex
	t0       time.Time
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	s.ctx = context.Background()
	s.journal = audit.NewPublisher(audit.NewInMemoryStore())
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.machine = New("user-1", "hack-1",
		WithJournal(s.journal),
		WithMetrics(s.metrics),
		WithLogger(logger.Discard()),
	)
	s.received = nil
	s.machine.Subscribe(func(snap models.Snapshot) {
		s.mu.Lock()
		s.received = append(s.received, snap)
		s.mu.Unlock()
	})
	s.t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *MachineSuite) read(status models.Status, orderID string, at time.Time) models.PollResult {
	return models.PollResult{
		Report:    models.StatusReport{Status: status, RawStatus: string(status), OrderID: orderID},
		CheckedAt: at,
		Source:    models.SourcePoll,
	}
}

func (s *MachineSuite) apply(result models.PollResult) Outcome {
	outcome, err := s.machine.Apply(s.ctx, s.machine.Begin(), result)
	s.Require().NoError(err)
	return outcome
}

func (s *MachineSuite) submitted(orderID string) models.PollResult {
	return models.PollResult{
		Report:    models.StatusReport{Status: models.StatusPending, OrderID: orderID, Message: "Under review"},
		CheckedAt: s.t0,
		Source:    models.SourceSubmission,
	}
}

func (s *MachineSuite) TestStartsUnresolvedAndBlocksSubmission() {
	snap := s.machine.Snapshot()
	s.Equal(models.StatusUnresolved, snap.Status)
	s.False(snap.HasChecked())

	err := s.machine.CheckSubmit()
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *MachineSuite) TestFirstReadEstablishesStatus() {
	s.Equal(OutcomeChanged, s.apply(s.read(models.StatusNotRegistered, "", s.t0)))
	s.NoError(s.machine.CheckSubmit())
	s.Equal(s.t0, s.machine.Snapshot().LastChecked)
}

func (s *MachineSuite) TestSubmissionMovesToPending() {
	s.apply(s.read(models.StatusNotRegistered, "", s.t0))

	outcome, err := s.machine.Apply(s.ctx, s.machine.Begin(), s.submitted("ord-1"))
	s.Require().NoError(err)
	s.Equal(OutcomeChanged, outcome)

	snap := s.machine.Snapshot()
	s.Equal(models.StatusPending, snap.Status)
	s.Equal("ord-1", snap.OrderID)
	s.Equal("Under review", snap.Message)

	s.Run("second submission while pending is refused", func() {
		outcome, err := s.machine.Apply(s.ctx, s.machine.Begin(), s.submitted("ord-2"))
		s.Equal(OutcomeRejected, outcome)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("ord-1", s.machine.Snapshot().OrderID)
	})

	events, err := s.journal.List(s.ctx, "user-1")
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Equal([]string{
		audit.ActionStatusChanged,
		audit.ActionSubmissionAccepted,
		audit.ActionSubmissionRejected,
	}, actions)
}

func (s *MachineSuite) TestRegisteredIsAbsorbing() {
	s.apply(s.read(models.StatusPending, "ord-1", s.t0))
	s.Equal(OutcomeChanged, s.apply(s.read(models.StatusRegistered, "ord-1", s.t0.Add(time.Minute))))

	for _, status := range []models.Status{
		models.StatusCancelled, models.StatusPending, models.StatusNotRegistered, models.StatusUnknown,
	} {
		s.Equal(OutcomeIgnoredTerminal, s.apply(s.read(status, "ord-1", s.t0.Add(2*time.Minute))), status)
	}
	s.Equal(models.StatusRegistered, s.machine.Status())
	s.Equal(s.t0.Add(time.Minute), s.machine.Snapshot().LastChecked)

	s.Run("registered re-read refreshes lastChecked only", func() {
		s.Equal(OutcomeUnchanged, s.apply(s.read(models.StatusRegistered, "ord-1", s.t0.Add(time.Hour))))
		s.Equal(s.t0.Add(time.Hour), s.machine.Snapshot().LastChecked)
	})

	s.Equal(4.0, testutil.ToFloat64(s.metrics.IgnoredReadsTotal.WithLabelValues("terminal")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TransitionsTotal.WithLabelValues("pending", "registered")))
}

func (s *MachineSuite) TestStaleReadAfterSubmissionIsDiscarded() {
	s.apply(s.read(models.StatusNotRegistered, "", s.t0))

	// Read issued before the submission lands after it.
	ticket := s.machine.Begin()
	_, err := s.machine.Apply(s.ctx, s.machine.Begin(), s.submitted("ord-1"))
	s.Require().NoError(err)

	outcome, err := s.machine.Apply(s.ctx, ticket, s.read(models.StatusNotRegistered, "", s.t0.Add(time.Second)))
	s.Require().NoError(err)
	s.Equal(OutcomeIgnoredStale, outcome)
	s.Equal(models.StatusPending, s.machine.Status())

	// A read issued afterwards is authoritative.
	s.Equal(OutcomeChanged, s.apply(s.read(models.StatusCancelled, "ord-1", s.t0.Add(2*time.Second))))
	s.Equal(models.StatusCancelled, s.machine.Status())
}

func (s *MachineSuite) TestCancelledAllowsResubmission() {
	s.apply(s.read(models.StatusCancelled, "ord-1", s.t0))
	s.NoError(s.machine.CheckSubmit())

	outcome, err := s.machine.Apply(s.ctx, s.machine.Begin(), s.submitted("ord-2"))
	s.Require().NoError(err)
	s.Equal(OutcomeChanged, outcome)
	s.Equal("ord-2", s.machine.Snapshot().OrderID)
}

func (s *MachineSuite) TestUnknownStatusIsDistinct() {
	s.apply(s.read(models.StatusPending, "ord-1", s.t0))
	result := s.read(models.StatusUnknown, "ord-1", s.t0.Add(time.Second))
	result.Report.RawStatus = "on_hold"

	s.Equal(OutcomeChanged, s.apply(result))
	s.Equal(models.StatusUnknown, s.machine.Status())
	err := s.machine.CheckSubmit()
	s.Require().Error(err)
	s.Equal("Unable to determine status, please contact support", err.Error())
}

func (s *MachineSuite) TestUnresolvedCannotBeObserved() {
	outcome, err := s.machine.Apply(s.ctx, s.machine.Begin(), s.read(models.StatusUnresolved, "", s.t0))
	s.Equal(OutcomeRejected, outcome)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *MachineSuite) TestSubscribersSeeEveryChange() {
	s.apply(s.read(models.StatusNotRegistered, "", s.t0))
	s.apply(s.read(models.StatusNotRegistered, "", s.t0.Add(time.Second)))
	s.apply(s.read(models.StatusPending, "ord-1", s.t0.Add(2*time.Second)))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().Len(s.received, 3)
	s.Equal(models.StatusNotRegistered, s.received[0].Status)
	s.Equal(s.t0.Add(time.Second), s.received[1].LastChecked)
	s.Equal(models.StatusPending, s.received[2].Status)
}

func (s *MachineSuite) TestConcurrentAppliesKeepRegisteredAbsorbing() {
	s.apply(s.read(models.StatusPending, "ord-1", s.t0))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := models.StatusPending
			if i == 10 {
				status = models.StatusRegistered
			}
			_, _ = s.machine.Apply(s.ctx, s.machine.Begin(), s.read(status, "ord-1", s.t0.Add(time.Duration(i)*time.Second)))
		}()
	}
	wg.Wait()
	s.Equal(models.StatusRegistered, s.machine.Status())

	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.received[len(s.received)-1]
	s.Equal(models.StatusRegistered, last.Status)
}
