package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Trace identifies one request across logs, analytics events and response
// headers.
type Trace struct {
	RequestID string
	TraceID   string
	SpanID    string
	Start     time.Time
	// Duration is set once the request completes.
	Duration time.Duration
}

type traceKey struct{}

// TraceFromContext returns the Trace of the request being served.
func TraceFromContext(ctx context.Context) (*Trace, bool) {
	t, ok := ctx.Value(traceKey{}).(*Trace)
	return t, ok
}

func contextWithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// traceIDs returns the ids of span, or random ids of the same shape when the
// span context is invalid (no-op tracer).
func traceIDs(span trace.Span) (traceID, spanID string) {
	sc := span.SpanContext()
	if sc.IsValid() {
		return sc.TraceID().String(), sc.SpanID().String()
	}
	return randomHex(16), randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
