package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBackendURL            = "http://localhost:8090"
	DefaultRequestTimeout        = 10 * time.Second
	DefaultPaymentPollInterval   = 30 * time.Second
	DefaultDetailRefreshInterval = 20 * time.Second
	DefaultDegradedPollInterval  = 60 * time.Second
	DefaultMaxProofBytes         = 5 * 1024 * 1024
)

// Client configures the registration client and the regwatch CLI.
type Client struct {
	BackendURL            string
	RequestTimeout        time.Duration
	PaymentPollInterval   time.Duration
	DetailRefreshInterval time.Duration
	DegradedPollInterval  time.Duration
	MaxProofBytes         int64
	LogLevel              slog.Level
	MetricsAddr           string
}

// DevBackend configures the development registration backend.
type DevBackend struct {
	Addr          string
	JWTSigningKey string
	AdminToken    string
	MaxProofBytes int64
	LogLevel      slog.Level
}

// LoadDotEnv reads a .env file from the working directory when one exists.
// Variables already present in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ClientFromEnv builds Client config from environment variables so main stays lean.
func ClientFromEnv() Client {
	return Client{
		BackendURL:            strings.TrimRight(getEnv("HACKMATE_BACKEND_URL", DefaultBackendURL), "/"),
		RequestTimeout:        getDuration("HACKMATE_REQUEST_TIMEOUT", DefaultRequestTimeout),
		PaymentPollInterval:   getDuration("HACKMATE_PAYMENT_POLL_INTERVAL", DefaultPaymentPollInterval),
		DetailRefreshInterval: getDuration("HACKMATE_DETAIL_REFRESH_INTERVAL", DefaultDetailRefreshInterval),
		DegradedPollInterval:  getDuration("HACKMATE_DEGRADED_POLL_INTERVAL", DefaultDegradedPollInterval),
		MaxProofBytes:         getInt64("HACKMATE_MAX_PROOF_BYTES", DefaultMaxProofBytes),
		LogLevel:              getLevel("LOG_LEVEL", slog.LevelInfo),
		MetricsAddr:           os.Getenv("METRICS_ADDR"),
	}
}

// DevBackendFromEnv builds DevBackend config from environment variables.
func DevBackendFromEnv() DevBackend {
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		// Development default; must be overridden anywhere shared.
		signingKey = "dev-secret-key-change-in-production"
	}
	return DevBackend{
		Addr:          getEnv("DEVBACKEND_ADDR", ":8090"),
		JWTSigningKey: signingKey,
		AdminToken:    getEnv("ADMIN_API_TOKEN", "demo-admin-token"),
		MaxProofBytes: getInt64("HACKMATE_MAX_PROOF_BYTES", DefaultMaxProofBytes),
		LogLevel:      getLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getLevel(key string, fallback slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return level
}
