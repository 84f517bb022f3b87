package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "hackmate/pkg/domain-errors"
	"hackmate/pkg/validation"
)

// DecodeJSON decodes a JSON request body into the target type.
// On failure it writes a 400 envelope and returns nil, false.
//
// Usage:
//
//	req, ok := httputil.DecodeJSON[verifyRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request body",
			"error", err,
			"path", r.URL.Path,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Invalid request body"))
		return nil, false
	}
	return &req, true
}

// Normalizable is implemented by request types that trim or canonicalise
// their fields before validation.
type Normalizable interface {
	Normalize()
}

// DecodeAndValidate decodes the body, normalizes it and runs its validate
// tags. A domain error from validation keeps its code.
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	if n, ok := any(req).(Normalizable); ok {
		n.Normalize()
	}
	if err := validation.Validate(req); err != nil {
		logger.WarnContext(r.Context(), "invalid request",
			"error", err,
			"path", r.URL.Path,
		)
		var domainErr *dErrors.Error
		if !errors.As(err, &domainErr) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
