// Package requesttime pins one timestamp per request. Every store write made
// while serving a request sees the same "now".
package requesttime

import (
	"context"
	"net/http"
	"time"
)

type ctxKey struct{}

// Middleware stamps each request with clock(). A nil clock means time.Now.
func Middleware(clock func() time.Time) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithTime(r.Context(), clock())))
		})
	}
}

// Now returns the request's timestamp, or time.Now outside a request.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}
