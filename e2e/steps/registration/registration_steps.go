package registration

import (
	"context"
	"fmt"
	"slices"

	"github.com/cucumber/godog"
	"github.com/google/uuid"

	"hackmate/internal/registration/models"
	"hackmate/internal/registration/presenter"
	"hackmate/internal/registration/service"
	"hackmate/pkg/testutil"
	"hackmate/pkg/validation"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	OpenSession() error
	RegistrationSession() *service.Session
	Notifications() (successes, errs []string, navigated int)
	SubmitAs(p models.Participant, reference string) error
	GetParticipant() models.Participant
	SetLastErr(err error)
	GetLastErr() error
	Eventually(cond func() bool, msg string) error
}

// RegisterSteps registers the participant-side registration steps.
func RegisterSteps(ctx *godog.ScenarioContext, current func() TestContext) {
	steps := &registrationSteps{current: current}

	ctx.Step(`^I open the registration page$`, steps.openPage)
	ctx.Step(`^someone else has already registered with my email$`, steps.duplicateEmail)
	ctx.Step(`^I select a payment screenshot of (\d+) bytes$`, steps.selectProof)
	ctx.Step(`^I submit the registration form$`, steps.submit)
	ctx.Step(`^I submit a payment screenshot with reference "([^"]*)"$`, steps.submitWithReference)
	ctx.Step(`^I retry the registration$`, steps.retry)
	ctx.Step(`^I check my status now$`, steps.checkNow)

	ctx.Step(`^my status should be "([^"]*)"$`, steps.statusShouldBe)
	ctx.Step(`^the primary action should be "([^"]*)"$`, steps.primaryActionShouldBe)
	ctx.Step(`^the fee shown should be "([^"]*)"$`, steps.feeShouldBe)
	ctx.Step(`^I should see a success message "([^"]*)"$`, steps.successShown)
	ctx.Step(`^I should see an error message "([^"]*)"$`, steps.errorShown)
	ctx.Step(`^the form should report "([^"]*)"$`, steps.formReports)
	ctx.Step(`^the submission should be refused$`, steps.submissionRefused)
	ctx.Step(`^I should be taken to the event page once$`, steps.navigatedOnce)
	ctx.Step(`^the banner should say "([^"]*)"$`, steps.bannerShouldSay)
}

type registrationSteps struct {
	current func() TestContext
}

func (s *registrationSteps) session() (*service.Session, error) {
	session := s.current().RegistrationSession()
	if session == nil {
		return nil, fmt.Errorf("registration page is not open")
	}
	return session, nil
}

func (s *registrationSteps) openPage(context.Context) error {
	return s.current().OpenSession()
}

func (s *registrationSteps) duplicateEmail(context.Context) error {
	me := s.current().GetParticipant()
	other := me
	other.ID = uuid.NewString()
	return s.current().SubmitAs(other, "UTR-OTHER-0001")
}

func (s *registrationSteps) selectProof(_ context.Context, size int) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	_, err = session.Form().SelectImage(testutil.PNGProof(size))
	s.current().SetLastErr(err)
	return nil
}

func (s *registrationSteps) submit(ctx context.Context) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	s.current().SetLastErr(session.Submit(ctx))
	return nil
}

func (s *registrationSteps) submitWithReference(ctx context.Context, reference string) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	session.Form().SetTransactionReference(reference)
	if _, err := session.Form().SelectImage(testutil.PNGProof(2048)); err != nil {
		return err
	}
	if err := session.Submit(ctx); err != nil {
		s.current().SetLastErr(err)
	}
	return nil
}

func (s *registrationSteps) retry(context.Context) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	return session.Retry()
}

func (s *registrationSteps) checkNow(ctx context.Context) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	_, err = session.ForceRecheck(ctx)
	s.current().SetLastErr(err)
	return nil
}

func (s *registrationSteps) statusShouldBe(_ context.Context, want string) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	return s.current().Eventually(func() bool {
		return session.Snapshot().Status == models.Status(want)
	}, fmt.Sprintf("status never became %s (last %s)", want, session.Snapshot().Status))
}

func (s *registrationSteps) primaryActionShouldBe(_ context.Context, want string) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	return s.current().Eventually(func() bool {
		return session.View().Primary.Action == presenter.Action(want)
	}, "primary action never became "+want)
}

func (s *registrationSteps) feeShouldBe(_ context.Context, want string) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	if got := session.View().Fee; got != want {
		return fmt.Errorf("expected fee %q, got %q", want, got)
	}
	return nil
}

func (s *registrationSteps) bannerShouldSay(_ context.Context, want string) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	if got := session.View().Banner.Message; got != want {
		return fmt.Errorf("expected banner %q, got %q", want, got)
	}
	return nil
}

func (s *registrationSteps) successShown(_ context.Context, msg string) error {
	return s.current().Eventually(func() bool {
		successes, _, _ := s.current().Notifications()
		return slices.Contains(successes, msg)
	}, fmt.Sprintf("success message %q never shown", msg))
}

func (s *registrationSteps) errorShown(_ context.Context, msg string) error {
	return s.current().Eventually(func() bool {
		_, errs, _ := s.current().Notifications()
		return slices.Contains(errs, msg)
	}, fmt.Sprintf("error message %q never shown", msg))
}

func (s *registrationSteps) formReports(_ context.Context, msg string) error {
	fe, ok := validation.AsFieldError(s.current().GetLastErr())
	if !ok {
		return fmt.Errorf("expected a field error, got %v", s.current().GetLastErr())
	}
	if fe.Message != msg {
		return fmt.Errorf("expected %q, got %q", msg, fe.Message)
	}
	return nil
}

func (s *registrationSteps) submissionRefused(context.Context) error {
	if s.current().GetLastErr() == nil {
		return fmt.Errorf("expected the submission to fail")
	}
	return nil
}

func (s *registrationSteps) navigatedOnce(context.Context) error {
	if err := s.current().Eventually(func() bool {
		_, _, n := s.current().Notifications()
		return n > 0
	}, "never navigated to the event page"); err != nil {
		return err
	}
	if _, _, n := s.current().Notifications(); n != 1 {
		return fmt.Errorf("navigated %d times", n)
	}
	return nil
}
