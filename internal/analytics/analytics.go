// Package analytics emits named, fire-and-forget events about request
// handling. A Sink never reports failure to its caller: request handling must
// not depend on whether an event was recorded.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Event names emitted by the request pipeline and the rate limiter.
const (
	EventAPIRequest        = "api_request"
	EventAPIError          = "api_error"
	EventRateLimitExceeded = "rate_limit_exceeded"
)

// Event is one occurrence with arbitrary key-value properties.
type Event struct {
	Name       string
	Properties map[string]any
	Timestamp  time.Time
}

// NewEvent stamps an event with the current time.
func NewEvent(name string, props map[string]any) Event {
	return Event{Name: name, Properties: props, Timestamp: time.Now()}
}

// Sink receives events. Implementations must be safe for concurrent use and
// must not block for long.
type Sink interface {
	Track(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) Track(ctx context.Context, e Event) { f(ctx, e) }

// Noop discards every event.
type Noop struct{}

func (Noop) Track(context.Context, Event) {}

// LogSink writes events to a structured logger at debug level.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Track(ctx context.Context, e Event) {
	attrs := make([]any, 0, len(e.Properties)+1)
	attrs = append(attrs, slog.String("event", e.Name))
	for k, v := range e.Properties {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.DebugContext(ctx, "Analytics event", attrs...)
}

// Multi fans an event out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Track(ctx context.Context, e Event) {
	for _, s := range m {
		s.Track(ctx, e)
	}
}

// Safe recovers panics raised by s and logs them.
func Safe(s Sink) Sink {
	return SinkFunc(func(ctx context.Context, e Event) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Warn("Analytics sink panicked", "event", e.Name, "panic", rec)
			}
		}()
		s.Track(ctx, e)
	})
}

// AsyncSink hands events to a background goroutine. When its buffer is full
// new events are dropped and counted.
type AsyncSink struct {
	next    Sink
	events  chan asyncEvent
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type asyncEvent struct {
	ctx context.Context
	e   Event
}

// NewAsync starts the delivery goroutine. Close must be called to flush
// pending events and stop it.
func NewAsync(next Sink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncSink{
		next:   Safe(next),
		events: make(chan asyncEvent, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Track enqueues e. Events tracked after Close are dropped.
func (a *AsyncSink) Track(ctx context.Context, e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.events <- asyncEvent{ctx: context.WithoutCancel(ctx), e: e}:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (a *AsyncSink) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until buffered events are delivered
// or ctx expires.
func (a *AsyncSink) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for ev := range a.events {
		a.next.Track(ev.ctx, ev.e)
	}
}
