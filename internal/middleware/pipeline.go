package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/analytics"
	"storefront/internal/apperror"
	"storefront/internal/ratelimit"
)

// Pipeline wraps HandlerFuncs with request logging, tracing and error
// normalization.
type Pipeline struct {
	logger         *slog.Logger
	sink           analytics.Sink
	tracer         trace.Tracer
	includeDetails bool
	now            func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for request and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithSink sets where api_request and api_error events go. A panicking sink
// is recovered and never affects the response.
func WithSink(sink analytics.Sink) Option {
	return func(p *Pipeline) {
		p.sink = analytics.Safe(sink)
	}
}

// WithTracer sets the tracer that starts the per-request span.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithErrorDetails controls whether error responses carry details and stack
// traces. Must be off in production.
func WithErrorDetails(include bool) Option {
	return func(p *Pipeline) {
		p.includeDetails = include
	}
}

// WithClock replaces time.Now for durations.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a Pipeline. Without options it logs to slog.Default,
// discards analytics, uses the global OpenTelemetry tracer and hides error
// details.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: slog.Default(),
		sink:   analytics.Noop{},
		tracer: otel.Tracer("storefront/middleware"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wrap adapts h to an http.Handler running inside the logging stage and the
// error stage, in that order.
func (p *Pipeline) Wrap(h HandlerFunc) http.Handler {
	handle := p.observe(p.recoverErrors(h))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The error has been written and logged by now.
		_ = handle(w, r)
	})
}

// observe is the logging and tracing stage.
func (p *Pipeline) observe(next HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		start := p.now()
		ctx, span := p.tracer.Start(r.Context(), "http.request",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		tr := &Trace{RequestID: uuid.NewString(), Start: start}
		tr.TraceID, tr.SpanID = traceIDs(span)
		ctx = contextWithTrace(ctx, tr)
		r = r.WithContext(ctx)

		client := ratelimit.ClientIdentity(r)
		logger := p.logger.With(
			"request_id", tr.RequestID,
			"trace_id", tr.TraceID,
			"span_id", tr.SpanID,
		)

		h := w.Header()
		h.Set("X-Request-ID", tr.RequestID)
		h.Set("X-Trace-ID", tr.TraceID)
		h.Set("X-Span-ID", tr.SpanID)

		logger.InfoContext(ctx, "Incoming request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"client", client,
			"user_agent", r.UserAgent(),
		)

		obs := &responseObserver{start: start, now: p.now, header: h}
		err := next(obs.wrap(w), r)
		obs.finish()

		tr.Duration = p.now().Sub(start)
		status := obs.status

		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		if err != nil {
			p.logFailure(ctx, logger, span, r, tr, status, err)
		}

		logger.Log(ctx, levelForStatus(status), "Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", tr.Duration.Milliseconds(),
			"bytes", obs.bytes,
		)
		p.sink.Track(ctx, analytics.NewEvent(analytics.EventAPIRequest, map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"durationMs": tr.Duration.Milliseconds(),
			"requestId":  tr.RequestID,
			"client":     client,
		}))

		return err
	}
}

func (p *Pipeline) logFailure(ctx context.Context, logger *slog.Logger, span trace.Span, r *http.Request, tr *Trace, status int, err error) {
	c := apperror.Classify(err)
	span.RecordError(err)

	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"kind", c.Err.Kind,
		"operational", c.Err.Operational,
		"error", err.Error(),
	}
	if c.Guessed {
		attrs = append(attrs, "classification", "heuristic")
	}

	if c.Err.Operational && !c.Guessed {
		logger.WarnContext(ctx, "Request failed", attrs...)
	} else {
		if stack := c.Err.Stack(); stack != "" {
			attrs = append(attrs, "stack", stack)
		}
		logger.ErrorContext(ctx, "Request failed", attrs...)
	}

	p.sink.Track(ctx, analytics.NewEvent(analytics.EventAPIError, map[string]any{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      status,
		"type":        string(c.Err.Kind),
		"message":     c.Err.Message,
		"operational": c.Err.Operational,
		"requestId":   tr.RequestID,
	}))
}

// recoverErrors is the error stage. Panics become INTERNAL_ERRORs; every error
// is written as the normalized envelope and then returned unchanged.
func (p *Pipeline) recoverErrors(next HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) (err error) {
		started := false
		tracked := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					started = true
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					started = true
					return next(b)
				}
			},
			ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
				return func(src io.Reader) (int64, error) {
					started = true
					return next(src)
				}
			},
		})

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err = panicError(rec)
			}
			if err == nil {
				return
			}
			if started {
				p.logger.WarnContext(r.Context(), "Response already started, error envelope not written",
					"path", r.URL.Path,
					"error", err.Error(),
				)
				return
			}
			status, env := apperror.Normalize(err, p.includeDetails)
			apperror.Write(w, status, env)
		}()

		return next(tracked, r)
	}
}

func panicError(rec any) error {
	if e, ok := rec.(error); ok {
		return apperror.NewInternalError(fmt.Sprintf("panic: %v", e), e)
	}
	return apperror.NewInternalError(fmt.Sprintf("panic: %v", rec), errors.New(fmt.Sprint(rec)))
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// responseObserver records the status and size of a response and stamps
// X-Response-Time just before the headers are sent.
type responseObserver struct {
	start       time.Time
	now         func() time.Time
	header      http.Header
	status      int
	bytes       int64
	wroteHeader bool
}

func (o *responseObserver) wrap(w http.ResponseWriter) http.ResponseWriter {
	return httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				o.beforeHeader(code)
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				o.beforeHeader(http.StatusOK)
				n, err := next(b)
				o.bytes += int64(n)
				return n, err
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				o.beforeHeader(http.StatusOK)
				n, err := next(src)
				o.bytes += n
				return n, err
			}
		},
	})
}

func (o *responseObserver) beforeHeader(code int) {
	if o.wroteHeader {
		return
	}
	o.wroteHeader = true
	o.status = code
	o.header.Set("X-Response-Time", formatResponseTime(o.now().Sub(o.start)))
}

// finish handles handlers that return without writing: net/http will send an
// implicit 200 with the current header map.
func (o *responseObserver) finish() {
	o.beforeHeader(http.StatusOK)
}

func formatResponseTime(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
}
