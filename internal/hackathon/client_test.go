package hackathon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackmate/internal/registration/client"
	dErrors "hackmate/pkg/domain-errors"
)

func TestFetchDetails(t *testing.T) {
	deadline := time.Date(2026, 11, 1, 18, 30, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/hackathons/hack-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": map[string]any{
					"hackathonId":          "hack-1",
					"name":                 " CodeYudh 2026 ",
					"registrationFee":      499,
					"venue":                "Main Auditorium",
					"status":               "registration_open",
					"registrationDeadline": deadline.Format(time.RFC3339),
				},
			})
		default:
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Hackathon not found"})
		}
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(client.New(client.Config{BaseURL: srv.URL}), nil)

	t.Run("decodes details", func(t *testing.T) {
		d, err := f.FetchDetails(context.Background(), "hack-1")
		require.NoError(t, err)
		assert.Equal(t, "CodeYudh 2026", d.Name)
		assert.EqualValues(t, 499, d.RegistrationFee)
		assert.Equal(t, "Main Auditorium", d.Venue)
		assert.Equal(t, StatusRegistrationOpen, d.Status)
		assert.True(t, deadline.Equal(d.RegistrationDeadline))
		assert.False(t, d.FetchedAt.IsZero())
	})

	t.Run("unknown hackathon is not found", func(t *testing.T) {
		_, err := f.FetchDetails(context.Background(), "missing")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestAcceptsRegistrations(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	open := &Details{Status: StatusRegistrationOpen}

	assert.True(t, open.AcceptsRegistrations(now))
	assert.False(t, (&Details{Status: StatusRegistrationClosed}).AcceptsRegistrations(now))
	assert.False(t, (&Details{Status: ParseStatus("ONGOING")}).AcceptsRegistrations(now))
	assert.False(t, (&Details{Status: StatusRegistrationOpen, RegistrationDeadline: now.Add(-time.Hour)}).AcceptsRegistrations(now))
	var missing *Details
	assert.False(t, missing.AcceptsRegistrations(now))
}
