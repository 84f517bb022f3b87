package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "hackmate/pkg/domain-errors"
	"hackmate/pkg/platform/httputil"
	"hackmate/pkg/platform/middleware/request"
)

// TokenValidator validates a bearer token and returns its participant claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is the authenticated participant carried by a bearer token.
type Claims struct {
	ParticipantID string
	Email         string
	TokenID       string
}

type contextKeyClaims struct{}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, contextKeyClaims{}, c)
}

// GetClaims returns the participant authenticated by RequireParticipant.
func GetClaims(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(contextKeyClaims{}).(Claims)
	return c, ok
}

// GetParticipantID returns the authenticated participant ID, or "".
func GetParticipantID(ctx context.Context) string {
	c, _ := GetClaims(ctx)
	return c.ParticipantID
}

// RequireParticipant rejects requests without a valid bearer token and stores
// the participant claims in the request context.
func RequireParticipant(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Please sign in to continue"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil || claims == nil || claims.ParticipantID == "" {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Your session has expired. Please sign in again"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, *claims)))
		})
	}
}
