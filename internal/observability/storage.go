package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/models"
	"storefront/internal/storage"
)

// instruments is the span + latency + error triple shared by the
// instrumented wrappers.
type instruments struct {
	prefix   string
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	// expected errors are recorded on the span but not counted or flagged.
	expected func(error) bool
}

func newInstruments(scope, prefix, what string, expected func(error) bool) (*instruments, error) {
	meter := otel.Meter(scope)

	duration, err := meter.Float64Histogram(
		prefix+".operation.duration",
		metric.WithDescription("Duration of "+what+" operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		prefix+".operation.errors",
		metric.WithDescription("Number of "+what+" operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &instruments{
		prefix:   prefix,
		tracer:   otel.Tracer(scope),
		duration: duration,
		errors:   errCounter,
		expected: expected,
	}, nil
}

func (in *instruments) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, in.prefix+"."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String(in.prefix+".operation", operation),
		}, attrs...)...),
	)
}

func (in *instruments) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	in.duration.Record(ctx, elapsed, attrs)

	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case in.expected != nil && in.expected(err):
		span.SetAttributes(attribute.Bool(in.prefix+".miss", true))
	default:
		in.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// InstrumentedRepository wraps a storage.Repository with OpenTelemetry
// tracing and metrics.
type InstrumentedRepository struct {
	inner storage.Repository
	in    *instruments
}

// NewInstrumentedRepository creates a repository wrapper that records trace
// spans, latency histograms and error counters for every call. Lookups of
// missing products are not counted as errors.
func NewInstrumentedRepository(inner storage.Repository) (*InstrumentedRepository, error) {
	in, err := newInstruments("storefront/storage", "storage", "repository", func(err error) bool {
		return errors.Is(err, storage.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &InstrumentedRepository{inner: inner, in: in}, nil
}

func (s *InstrumentedRepository) Products(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	ctx, span := s.in.startSpan(ctx, "Products",
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)
	start := time.Now()
	result, err := s.inner.Products(ctx, limit, offset)
	s.in.record(ctx, span, "Products", start, err)
	return result, err
}

func (s *InstrumentedRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := s.in.startSpan(ctx, "GetProduct", attribute.String("product_id", id))
	start := time.Now()
	result, err := s.inner.GetProduct(ctx, id)
	s.in.record(ctx, span, "GetProduct", start, err)
	return result, err
}

func (s *InstrumentedRepository) SaveProduct(ctx context.Context, p *models.Product) error {
	ctx, span := s.in.startSpan(ctx, "SaveProduct", attribute.String("product_id", p.ID))
	start := time.Now()
	err := s.inner.SaveProduct(ctx, p)
	s.in.record(ctx, span, "SaveProduct", start, err)
	return err
}

func (s *InstrumentedRepository) Ping(ctx context.Context) error {
	ctx, span := s.in.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.in.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedRepository) Close() error {
	return s.inner.Close()
}
