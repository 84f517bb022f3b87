// Package tracer is a small tracing port for calls to the registration backend.
//
// Callers depend on Tracer and Span only; OTelTracer adapts OpenTelemetry and
// NoopTracer is used in tests.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashParticipant returns a short SHA-256 prefix of a participant identifier so
// traces can be correlated without carrying the identifier itself.
func HashParticipant(participantID string) string {
	if participantID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(participantID))
	return hex.EncodeToString(hash[:8])
}

// Span names.
const (
	SpanFetchStatus    = "registration.fetch_status"
	SpanSubmitPayment  = "registration.submit_payment"
	SpanVerifyStatus   = "registration.verify_status"
	SpanFetchHackathon = "hackathon.fetch_details"
)

// Attribute keys.
const (
	AttrParticipant = "participant.hash"
	AttrEventID     = "event.id"
	AttrOrderID     = "order.id"
	AttrStatus      = "registration.status"
	AttrHTTPStatus  = "http.status_code"
	AttrProofBytes  = "proof.bytes"
)
