package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"tradegate/internal/admission"
)

// InstrumentedStore wraps an admission.WindowStore with OpenTelemetry
// tracing and metrics instrumentation. Errors pass through unchanged so
// the engine's ErrStoreUnavailable fallback still matches.
type InstrumentedStore struct {
	inner    admission.WindowStore
	backend  string
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStore creates a store wrapper that records trace spans,
// operation latency histograms, and error counters for every store call.
// backend labels the metrics ("redis", "sql", "local").
func NewInstrumentedStore(inner admission.WindowStore, backend string) (*InstrumentedStore, error) {
	tracer := otel.Tracer("tradegate/admission")
	meter := otel.Meter("tradegate/admission")

	duration, err := meter.Float64Histogram(
		"admission.store.duration",
		metric.WithDescription("Duration of window store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"admission.store.errors",
		metric.WithDescription("Number of window store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		backend:  backend,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "admission.store."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("store.operation", operation),
			attribute.String("store.backend", s.backend),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("backend", s.backend),
	)

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) Incr(ctx context.Context, key string, window time.Duration) (admission.Usage, error) {
	ctx, span := s.startSpan(ctx, "Incr")
	start := time.Now()
	usage, err := s.inner.Incr(ctx, key, window)
	s.record(ctx, span, "Incr", start, err)
	return usage, err
}

func (s *InstrumentedStore) ActiveKeys(ctx context.Context) (int, error) {
	ctx, span := s.startSpan(ctx, "ActiveKeys")
	start := time.Now()
	count, err := s.inner.ActiveKeys(ctx)
	s.record(ctx, span, "ActiveKeys", start, err)
	return count, err
}

func (s *InstrumentedStore) Healthy(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Healthy")
	start := time.Now()
	err := s.inner.Healthy(ctx)
	s.record(ctx, span, "Healthy", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
