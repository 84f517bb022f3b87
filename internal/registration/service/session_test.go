package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/mock/gomock"

	"hackmate/internal/audit"
	"hackmate/internal/hackathon"
	"hackmate/internal/registration/client"
	"hackmate/internal/registration/models"
	"hackmate/internal/registration/presenter"
	dErrors "hackmate/pkg/domain-errors"
	fake "hackmate/pkg/testutil"
	"hackmate/pkg/validation"
)

func (s *SessionSuite) TestNewRequiresIdentity() {
	_, err := New(Config{EventID: testEventID}, s.backend)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = New(Config{Participant: s.participant, EventID: testEventID}, nil)
	s.Error(err)
}

func (s *SessionSuite) TestMountReadsStatusImmediately() {
	s.Equal(presenter.LabelChecking, s.session.View().Primary.Label, "nothing known before the first read")
	s.expectPolling()

	s.mount()

	snap := s.session.Snapshot()
	s.Equal(models.StatusNotRegistered, snap.Status)
	s.Equal(presenter.LabelJoin, s.session.View().Primary.Label)
	s.NoError(s.session.Mount(context.Background()), "second mount is a no-op")
}

func (s *SessionSuite) TestCommandsRequireMount() {
	err := s.session.Submit(context.Background())
	s.ErrorIs(err, ErrNotMounted)

	_, err = s.session.ForceRecheck(context.Background())
	s.ErrorIs(err, ErrNotMounted)
}

// Submitting a valid form moves the session to pending with the server order.
func (s *SessionSuite) TestSubmitMovesToPending() {
	s.expectPolling()
	s.mount()
	s.selectProof()
	ref := s.session.Form().Fields().TransactionReference

	s.backend.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub *models.PaymentSubmission) (*models.SubmitReceipt, error) {
			s.Equal(testEventID, sub.EventID)
			s.Equal(s.participant.ID, sub.ParticipantID)
			s.Equal(ref, sub.TransactionReference)
			s.Equal("image/png", sub.Proof.ContentType)
			return &models.SubmitReceipt{OrderID: "ord-1"}, nil
		}).Times(1)
	s.notifier.EXPECT().Success(msgSubmitted).Times(1)

	s.Require().NoError(s.session.Submit(context.Background()))

	snap := s.session.Snapshot()
	s.Equal(models.StatusPending, snap.Status)
	s.Equal("ord-1", snap.OrderID)
	s.Equal(msgSubmitted, snap.Message)
	s.False(s.session.Form().HasProof(), "form resets after an accepted submission")
	s.NotEqual(ref, s.session.Form().Fields().TransactionReference)
	s.Zero(s.previews.Live())
	s.Equal(presenter.LabelVerifying, s.session.View().Primary.Label)

	s.Run("a second submission while pending makes no network call", func() {
		s.selectProof()
		err := s.session.Submit(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// Pending becomes registered on a poll tick; later cancelled reads are ignored.
func (s *SessionSuite) TestPendingBecomesRegisteredAndStays() {
	s.setServer(fake.StatusReport(models.StatusPending, "ord-1"), nil)
	s.expectPolling()
	ticker := s.mount()
	s.Equal(models.StatusPending, s.session.Snapshot().Status)

	s.navigator.EXPECT().Registered(testEventID).Times(1)
	s.setServer(fake.StatusReport(models.StatusRegistered, "ord-1"), nil)
	s.Require().True(ticker.Tick())
	s.waitForStatus(models.StatusRegistered)

	s.Require().Eventually(ticker.Stopped, eventuallyTimeout, eventuallyPollEvery, "status loop stops once registered")

	s.backend.EXPECT().VerifyStatus(gomock.Any(), "ord-1", s.participant.ID).
		Return(fake.StatusReport(models.StatusCancelled, "ord-1"), nil)
	snap, err := s.session.ForceRecheck(context.Background())
	s.Require().NoError(err)
	s.Equal(models.StatusRegistered, snap.Status)
	s.Equal(presenter.LabelRegistered, s.session.View().Primary.Label)
	s.False(s.session.View().Primary.Enabled)

	events, err := s.journal.List(context.Background(), s.participant.ID)
	s.Require().NoError(err)
	last := events[len(events)-1]
	s.Equal(audit.ActionObservationIgnored, last.Action)
	s.Equal("terminal", last.Reason)
}

// Cancelled offers a retry with a fresh reference; resubmission goes pending.
func (s *SessionSuite) TestCancelledRetryResubmits() {
	s.setServer(&models.StatusReport{Status: models.StatusCancelled, OrderID: "ord-1", Message: "Reference mismatch"}, nil)
	s.expectPolling()
	s.mount()

	view := s.session.View()
	s.Equal(presenter.LabelRetry, view.Primary.Label)
	s.Equal("Reference mismatch", view.Banner.Message)

	before := s.session.Form().Fields().TransactionReference
	s.Require().NoError(s.session.Retry())
	s.NotEqual(before, s.session.Form().Fields().TransactionReference)
	s.Equal(models.StatusCancelled, s.session.Snapshot().Status)

	s.selectProof()
	fresh := s.session.Form().Fields().TransactionReference
	s.backend.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub *models.PaymentSubmission) (*models.SubmitReceipt, error) {
			s.Equal(fresh, sub.TransactionReference)
			return &models.SubmitReceipt{OrderID: "ord-2", Message: "Resubmitted"}, nil
		})
	s.notifier.EXPECT().Success("Resubmitted")

	s.Require().NoError(s.session.Submit(context.Background()))
	snap := s.session.Snapshot()
	s.Equal(models.StatusPending, snap.Status)
	s.Equal("ord-2", snap.OrderID)
}

func (s *SessionSuite) TestRetryOnlyFromCancelled() {
	s.expectPolling()
	s.mount()
	s.ErrorIs(s.session.Retry(), ErrRetryNotAllowed)
}

// An oversized image is rejected locally and nothing is sent.
func (s *SessionSuite) TestOversizedImageRejectedLocally() {
	s.expectPolling()
	s.mount()

	_, err := s.session.Form().SelectImage(fake.PNGProof(6 * 1024 * 1024))
	fe, ok := validation.AsFieldError(err)
	s.Require().True(ok)
	s.Equal("proof_image", fe.Field)

	err = s.session.Submit(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(models.StatusNotRegistered, s.session.Snapshot().Status)
}

func (s *SessionSuite) TestSubmitIsSingleFlight() {
	s.expectPolling()
	s.mount()
	s.selectProof()

	release := make(chan struct{})
	s.backend.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *models.PaymentSubmission) (*models.SubmitReceipt, error) {
			<-release
			return &models.SubmitReceipt{OrderID: "ord-1"}, nil
		}).Times(1)
	s.notifier.EXPECT().Success(gomock.Any()).Times(1)

	done := make(chan error, 1)
	go func() { done <- s.session.Submit(context.Background()) }()
	s.Require().Eventually(s.session.Submitting, eventuallyTimeout, eventuallyPollEvery)
	s.Equal(presenter.LabelSubmitting, s.session.View().Primary.Label)

	err := s.session.Submit(context.Background())
	s.ErrorIs(err, ErrSubmissionInFlight)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	close(release)
	s.NoError(<-done)
	s.False(s.session.Submitting())
}

func (s *SessionSuite) TestRejectedSubmissionSurfacesServerMessage() {
	const msg = "You have already registered for this hackathon with this email."
	s.expectPolling()
	s.mount()
	s.selectProof()
	ref := s.session.Form().Fields().TransactionReference

	be := client.NewBackendError(client.ErrorConflict, client.OpSubmitPayment, "duplicate registration", nil)
	be.ServerMessage = msg
	s.backend.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).Return(nil, be)
	s.notifier.EXPECT().Error(msg).Times(1)

	err := s.session.Submit(context.Background())
	s.Require().Error(err)
	s.Equal(msg, err.Error())
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(models.StatusNotRegistered, s.session.Snapshot().Status, "status unchanged")
	s.True(s.session.Form().HasProof(), "form kept for a manual retry")
	s.Equal(ref, s.session.Form().Fields().TransactionReference)
}

func (s *SessionSuite) TestNetworkFailureUsesGenericMessage() {
	s.expectPolling()
	s.mount()
	s.selectProof()

	s.backend.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		Return(nil, client.NewBackendError(client.ErrorUnavailable, client.OpSubmitPayment, "failed to execute request", errors.New("refused")))
	s.notifier.EXPECT().Error(msgSubmitFailed)

	err := s.session.Submit(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

// Automatic poll failures stay silent; a manual check failure is surfaced once.
func (s *SessionSuite) TestPollErrorsSilentManualErrorsSurfacedOnce() {
	s.setServer(fake.StatusReport(models.StatusPending, ""), nil)
	s.expectPolling()
	ticker := s.mount()

	s.setServer(nil, client.NewBackendError(client.ErrorTimeout, client.OpFetchStatus, "request timeout", nil))
	s.Require().True(ticker.Tick())
	s.Require().True(ticker.Tick())
	s.Equal(models.StatusPending, s.session.Snapshot().Status, "failed polls do not change state")

	s.notifier.EXPECT().Error(msgCheckFailed).Times(1)
	_, err := s.session.ForceRecheck(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.False(s.session.Checking())
}

func (s *SessionSuite) TestRepeatedPollFailuresDegradeCadence() {
	s.expectPolling()
	s.setServer(nil, errors.New("backend down"))
	s.Require().NoError(s.session.Mount(context.Background()))
	ticker := s.ticker(paymentInterval)

	s.Require().True(ticker.Tick())
	s.Require().True(ticker.Tick())
	s.Require().Eventually(func() bool { return ticker.Interval() == degradedInterval },
		eventuallyTimeout, eventuallyPollEvery)

	s.setServer(fake.StatusReport(models.StatusNotRegistered, ""), nil)
	s.Require().True(ticker.Tick())
	s.Require().Eventually(func() bool { return ticker.Interval() == paymentInterval },
		eventuallyTimeout, eventuallyPollEvery)
	s.waitForStatus(models.StatusNotRegistered)
}

func (s *SessionSuite) TestManualCheckVerifiesKnownOrder() {
	s.setServer(fake.StatusReport(models.StatusPending, "ord-1"), nil)
	s.expectPolling()
	s.mount()

	s.navigator.EXPECT().Registered(testEventID)
	s.notifier.EXPECT().Success(msgVerifiedRegistered).Times(1)
	s.backend.EXPECT().VerifyStatus(gomock.Any(), "ord-1", s.participant.ID).
		Return(fake.StatusReport(models.StatusRegistered, "ord-1"), nil)

	snap, err := s.session.ForceRecheck(context.Background())
	s.Require().NoError(err)
	s.Equal(models.StatusRegistered, snap.Status)
}

func (s *SessionSuite) TestManualCheckWithoutOrderReadsStatus() {
	s.expectPolling()
	s.mount()

	snap, err := s.session.ForceRecheck(context.Background())
	s.Require().NoError(err)
	s.Equal(models.StatusNotRegistered, snap.Status)
}

func (s *SessionSuite) TestOverlappingManualChecksShareOneRequest() {
	s.setServer(fake.StatusReport(models.StatusPending, "ord-1"), nil)
	s.expectPolling()
	s.mount()

	release := make(chan struct{})
	s.backend.EXPECT().VerifyStatus(gomock.Any(), "ord-1", s.participant.ID).
		DoAndReturn(func(context.Context, string, string) (*models.StatusReport, error) {
			<-release
			return fake.StatusReport(models.StatusPending, "ord-1"), nil
		}).Times(1)
	s.notifier.EXPECT().Success(msgStillPending).Times(1)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.session.ForceRecheck(context.Background())
			s.NoError(err)
		}()
	}
	s.Require().Eventually(s.session.Checking, eventuallyTimeout, eventuallyPollEvery)
	s.False(s.session.View().CheckNow.Enabled)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	s.False(s.session.Checking())
}

func (s *SessionSuite) TestUnknownStatusBlocksSubmission() {
	s.setServer(&models.StatusReport{Status: models.StatusUnknown, RawStatus: "on_hold"}, nil)
	s.expectPolling()
	s.mount()

	s.Equal(models.StatusUnknown, s.session.Snapshot().Status)
	s.Equal(presenter.UnknownStatusMessage, s.session.View().Banner.Message)

	s.selectProof()
	err := s.session.Submit(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// After Unmount no further status reads happen.
func (s *SessionSuite) TestUnmountStopsPolling() {
	var calls int
	var mu sync.Mutex
	s.backend.EXPECT().FetchStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, p, e string) (*models.StatusReport, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return s.serverStatus(ctx, p, e)
		}).AnyTimes()

	ticker := s.mount()
	s.Require().True(ticker.Tick())
	s.selectProof()

	s.session.Unmount()
	s.True(ticker.Stopped())
	s.Zero(s.previews.Live(), "unmount releases the preview")

	mu.Lock()
	before := calls
	mu.Unlock()
	s.False(ticker.TryTick())
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	s.Equal(before, calls)
	mu.Unlock()

	s.session.Unmount()
}

func (s *SessionSuite) TestDetailLoopGatesJoinAndSetsAmount() {
	closed := openHackathon()
	closed.Status = hackathon.StatusRegistrationClosed
	s.setDetails(closed, nil)
	s.expectPolling()

	s.mount()
	detailTicker := s.ticker(detailInterval)
	s.Require().Eventually(func() bool { return s.session.Details() != nil }, eventuallyTimeout, eventuallyPollEvery)
	s.Equal(presenter.LabelClosed, s.session.View().Primary.Label)

	s.setDetails(openHackathon(), nil)
	s.Require().True(detailTicker.Tick())
	s.Require().Eventually(func() bool {
		return s.session.View().Primary.Label == presenter.LabelJoin
	}, eventuallyTimeout, eventuallyPollEvery)

	s.selectProof()
	s.backend.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub *models.PaymentSubmission) (*models.SubmitReceipt, error) {
			s.EqualValues(499, sub.Amount)
			return &models.SubmitReceipt{OrderID: "ord-1"}, nil
		})
	s.notifier.EXPECT().Success(gomock.Any())
	s.Require().NoError(s.session.Submit(context.Background()))
}

// Without a known fee nothing is sent; a late detail read unblocks the submit.
func (s *SessionSuite) TestSubmitNeedsHackathonDetails() {
	s.Run("no detail source", func() {
		s.session = s.newSession(false)
		s.expectPolling()
		s.mount()
		s.selectProof()

		err := s.session.Submit(context.Background())
		s.ErrorIs(err, ErrDetailsUnavailable)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.True(s.session.Form().HasProof(), "form kept")
		s.session.Unmount()
	})

	s.Run("details read at submit time", func() {
		s.session = s.newSession(true)
		s.setDetails(nil, errors.New("details down"))
		s.expectPolling()
		s.mount()
		s.selectProof()

		err := s.session.Submit(context.Background())
		s.ErrorIs(err, ErrDetailsUnavailable)
		s.Equal(models.StatusNotRegistered, s.session.Snapshot().Status)

		s.setDetails(openHackathon(), nil)
		s.backend.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, sub *models.PaymentSubmission) (*models.SubmitReceipt, error) {
				s.EqualValues(499, sub.Amount)
				return &models.SubmitReceipt{OrderID: "ord-1"}, nil
			}).Times(1)
		s.notifier.EXPECT().Success(msgSubmitted)

		s.Require().NoError(s.session.Submit(context.Background()))
		s.Equal(models.StatusPending, s.session.Snapshot().Status)
	})
}

// Unmount cancels a manual check that is still waiting on the backend.
func (s *SessionSuite) TestUnmountCancelsManualCheckInFlight() {
	s.setServer(fake.StatusReport(models.StatusPending, "ord-1"), nil)
	s.expectPolling()
	s.mount()

	started := make(chan struct{})
	s.backend.EXPECT().VerifyStatus(gomock.Any(), "ord-1", s.participant.ID).
		DoAndReturn(func(ctx context.Context, _, _ string) (*models.StatusReport, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}).Times(1)

	done := make(chan error, 1)
	go func() {
		_, err := s.session.ForceRecheck(context.Background())
		done <- err
	}()
	<-started
	s.session.Unmount()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(eventuallyTimeout):
		s.Fail("manual check outlived Unmount")
	}
	s.False(s.session.Checking())
}
