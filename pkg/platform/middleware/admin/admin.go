// Package admin guards manual-review routes with a shared admin token.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "hackmate/pkg/domain-errors"
	"hackmate/pkg/platform/httputil"
	"hackmate/pkg/platform/middleware/request"
)

type contextKeyReviewer struct{}

// GetReviewer returns the X-Admin-Actor-ID of an admin request, or "".
func GetReviewer(ctx context.Context) string {
	if reviewer, ok := ctx.Value(contextKeyReviewer{}).(string); ok {
		return reviewer
	}
	return ""
}

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken. An empty expectedToken rejects everything.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			if reviewer := r.Header.Get("X-Admin-Actor-ID"); reviewer != "" {
				ctx = context.WithValue(ctx, contextKeyReviewer{}, reviewer)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
