package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"grantdesk/internal/kvstore"
)

// InstrumentedStore wraps a kvstore.Store with OpenTelemetry tracing and
// metrics. The key-value store sits on the admission path of every mutating
// request, so its latency and error rates matter more than most.
//
// Store keys are not recorded as attributes: rate-limit keys embed client
// identity and idempotency keys are caller-chosen.
type InstrumentedStore struct {
	inner    kvstore.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStore creates a kvstore wrapper recording per-operation
// latency histograms and error counters.
func NewInstrumentedStore(inner kvstore.Store) (*InstrumentedStore, error) {
	tracer := otel.Tracer("grantdesk/kvstore")
	meter := otel.Meter("grantdesk/kvstore")

	duration, err := meter.Float64Histogram(
		"kvstore.operation.duration",
		metric.WithDescription("Duration of key-value store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"kvstore.operation.errors",
		metric.WithDescription("Number of key-value store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "kvstore."+operation,
		trace.WithAttributes(attribute.String("kvstore.operation", operation)),
	)
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil && err != kvstore.ErrNotFound {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	ctx, span := s.startSpan(ctx, "Increment")
	start := time.Now()
	count, resetAt, err := s.inner.Increment(ctx, key, window)
	s.record(ctx, span, "Increment", start, err)
	return count, resetAt, err
}

func (s *InstrumentedStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, span := s.startSpan(ctx, "SetIfAbsent")
	start := time.Now()
	set, err := s.inner.SetIfAbsent(ctx, key, value, ttl)
	s.record(ctx, span, "SetIfAbsent", start, err)
	return set, err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.startSpan(ctx, "Get")
	start := time.Now()
	value, err := s.inner.Get(ctx, key)
	s.record(ctx, span, "Get", start, err)
	return value, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := s.startSpan(ctx, "Set")
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	s.record(ctx, span, "Set", start, err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	ctx, span := s.startSpan(ctx, "Delete")
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.record(ctx, span, "Delete", start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
