package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"storefront/internal/analytics"
)

// MetricsSink turns analytics events into OpenTelemetry counters: one count
// per event name, with the HTTP status and error type as attributes when the
// event carries them.
type MetricsSink struct {
	events metric.Int64Counter
}

// NewMetricsSink creates the analytics.events counter.
func NewMetricsSink() (*MetricsSink, error) {
	counter, err := otel.Meter("storefront/analytics").Int64Counter(
		"analytics.events",
		metric.WithDescription("Number of analytics events by name"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &MetricsSink{events: counter}, nil
}

// Track implements analytics.Sink.
func (s *MetricsSink) Track(ctx context.Context, e analytics.Event) {
	attrs := []attribute.KeyValue{attribute.String("event", e.Name)}
	if status, ok := e.Properties["status"]; ok {
		attrs = append(attrs, attribute.String("status", fmt.Sprint(status)))
	}
	if kind, ok := e.Properties["type"].(string); ok {
		attrs = append(attrs, attribute.String("type", kind))
	}
	s.events.Add(ctx, 1, metric.WithAttributes(attrs...))
}
