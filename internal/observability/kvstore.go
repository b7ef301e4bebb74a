package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/kvstore"
)

// InstrumentedStore wraps a kvstore.Store with OpenTelemetry tracing and
// metrics. Keys are not recorded; they contain client addresses.
type InstrumentedStore struct {
	inner kvstore.Store
	in    *instruments
}

// NewInstrumentedStore creates a counter store wrapper. Misses (ErrNotFound)
// are not counted as errors.
func NewInstrumentedStore(inner kvstore.Store) (*InstrumentedStore, error) {
	in, err := newInstruments("storefront/kvstore", "kvstore", "counter store", func(err error) bool {
		return errors.Is(err, kvstore.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &InstrumentedStore{inner: inner, in: in}, nil
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (string, error) {
	ctx, span := s.in.startSpan(ctx, "Get")
	start := time.Now()
	value, err := s.inner.Get(ctx, key)
	s.in.record(ctx, span, "Get", start, err)
	return value, err
}

func (s *InstrumentedStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := s.in.startSpan(ctx, "Put", attribute.Int64("ttl_ms", ttl.Milliseconds()))
	start := time.Now()
	err := s.inner.Put(ctx, key, value, ttl)
	s.in.record(ctx, span, "Put", start, err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	ctx, span := s.in.startSpan(ctx, "Delete")
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.in.record(ctx, span, "Delete", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
