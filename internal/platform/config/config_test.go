package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"HACKMATE_BACKEND_URL", "HACKMATE_REQUEST_TIMEOUT", "HACKMATE_PAYMENT_POLL_INTERVAL",
		"HACKMATE_DETAIL_REFRESH_INTERVAL", "HACKMATE_DEGRADED_POLL_INTERVAL",
		"HACKMATE_MAX_PROOF_BYTES", "LOG_LEVEL", "METRICS_ADDR",
	} {
		t.Setenv(key, "")
	}

	cfg := ClientFromEnv()
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.PaymentPollInterval)
	assert.Equal(t, 20*time.Second, cfg.DetailRefreshInterval)
	assert.Equal(t, 60*time.Second, cfg.DegradedPollInterval)
	assert.EqualValues(t, 5*1024*1024, cfg.MaxProofBytes)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestClientFromEnvOverrides(t *testing.T) {
	t.Setenv("HACKMATE_BACKEND_URL", "https://api.example.test/")
	t.Setenv("HACKMATE_PAYMENT_POLL_INTERVAL", "5s")
	t.Setenv("HACKMATE_DETAIL_REFRESH_INTERVAL", "not-a-duration")
	t.Setenv("HACKMATE_MAX_PROOF_BYTES", "1024")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := ClientFromEnv()
	assert.Equal(t, "https://api.example.test", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.PaymentPollInterval)
	assert.Equal(t, DefaultDetailRefreshInterval, cfg.DetailRefreshInterval, "invalid durations fall back")
	assert.EqualValues(t, 1024, cfg.MaxProofBytes)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestDevBackendFromEnv(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("DEVBACKEND_ADDR", ":9999")

	cfg := DevBackendFromEnv()
	assert.Equal(t, ":9999", cfg.Addr)
	assert.NotEmpty(t, cfg.JWTSigningKey)
	assert.Equal(t, "demo-admin-token", cfg.AdminToken)
}
