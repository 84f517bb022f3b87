package requesttime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMiddlewarePinsClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var first, second time.Time
	handler := Middleware(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = Now(r.Context())
		time.Sleep(5 * time.Millisecond)
		second = Now(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, fixed, first)
	assert.Equal(t, first, second)
}

func TestNilClockUsesWallTime(t *testing.T) {
	var got time.Time
	before := time.Now()
	Middleware(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = Now(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, got.Before(before))
}

func TestNowOutsideRequest(t *testing.T) {
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)

	pinned := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, pinned, Now(WithTime(context.Background(), pinned)))
}
