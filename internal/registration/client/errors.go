package client

import (
	"errors"
	"fmt"

	dErrors "hackmate/pkg/domain-errors"
)

// ErrorCategory is the normalized failure taxonomy for backend calls.
type ErrorCategory string

const (
	// ErrorTimeout: no response within the request deadline.
	ErrorTimeout ErrorCategory = "timeout"
	// ErrorUnavailable: connection failure or 5xx.
	ErrorUnavailable ErrorCategory = "unavailable"
	// ErrorRejected: the backend refused the request (validation, success=false).
	ErrorRejected ErrorCategory = "rejected"
	// ErrorConflict: duplicate submission for the same participant and event.
	ErrorConflict ErrorCategory = "conflict"
	// ErrorUnauthorized: missing or invalid bearer token.
	ErrorUnauthorized ErrorCategory = "unauthorized"
	// ErrorBadResponse: the body could not be decoded.
	ErrorBadResponse ErrorCategory = "bad_response"
	// ErrorInternal: the request could not be built.
	ErrorInternal ErrorCategory = "internal"
)

// BackendError wraps a failed backend call. ServerMessage holds the backend's
// own message, verbatim, when the response carried one.
type BackendError struct {
	Category      ErrorCategory
	Operation     string
	Message       string
	ServerMessage string
	StatusCode    int
	Retryable     bool
	Underlying    error
}

func (e *BackendError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("backend %s [%s]: %s: %v", e.Operation, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("backend %s [%s]: %s", e.Operation, e.Category, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Underlying
}

// NewBackendError sets Retryable for transient categories (timeout, unavailable).
func NewBackendError(category ErrorCategory, operation, message string, underlying error) *BackendError {
	return &BackendError{
		Category:   category,
		Operation:  operation,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorUnavailable,
	}
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the category, defaulting to ErrorInternal.
func GetCategory(err error) ErrorCategory {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Category
	}
	return ErrorInternal
}

// UserMessage returns the backend's message verbatim when present, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var be *BackendError
	if errors.As(err, &be) && be.ServerMessage != "" {
		return be.ServerMessage
	}
	return fallback
}

// ToDomainError maps a backend failure onto the domain error codes used at the
// session boundary. The user-facing message follows UserMessage.
func ToDomainError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	msg := UserMessage(err, fallback)
	switch GetCategory(err) {
	case ErrorTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	case ErrorUnavailable:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	case ErrorConflict:
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case ErrorUnauthorized:
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, msg)
	case ErrorRejected:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
