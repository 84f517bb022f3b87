package service

import (
	"errors"
	"fmt"

	dErrors "hackmate/pkg/domain-errors"
)

// Sentinels. Commands return them wrapped in a domain error, so both
// errors.Is(err, ErrX) and dErrors.HasCode work.
var (
	// ErrSubmissionInFlight: another submission for this session is running.
	// No network call is made.
	ErrSubmissionInFlight = errors.New("submission in flight")
	// ErrNotMounted: command issued before Mount or after Unmount.
	ErrNotMounted = errors.New("session not mounted")
	// ErrRetryNotAllowed: Retry outside the cancelled state.
	ErrRetryNotAllowed = errors.New("retry not allowed")
	// ErrDetailsUnavailable: the registration fee is not known yet.
	ErrDetailsUnavailable = errors.New("hackathon details unavailable")
)

func errSubmissionInFlight() error {
	return dErrors.Wrap(ErrSubmissionInFlight, dErrors.CodeConflict, "A submission is already in progress")
}

func errNotMounted() error {
	return dErrors.Wrap(ErrNotMounted, dErrors.CodeBadRequest, "Registration view is not active")
}

func errRetryNotAllowed() error {
	return dErrors.Wrap(ErrRetryNotAllowed, dErrors.CodeConflict, "Retry is only possible after a failed registration")
}

func errDetailsUnavailable(cause error) error {
	if cause != nil {
		cause = fmt.Errorf("%w: %w", ErrDetailsUnavailable, cause)
	} else {
		cause = ErrDetailsUnavailable
	}
	return dErrors.Wrap(cause, dErrors.CodeUnavailable, "Hackathon details are still loading. Please try again.")
}

// Participant-facing fallbacks used when the backend sends no message.
const (
	msgSubmitFailed       = "Registration failed. Please try again."
	msgSubmitted          = "Payment submitted! Verification typically takes up to 24 hours."
	msgCheckFailed        = "Unable to check registration status right now. Please try again."
	msgVerifiedRegistered = "Registration verified successfully! You are now registered."
	msgStillPending       = "Your payment is still under verification."
)
