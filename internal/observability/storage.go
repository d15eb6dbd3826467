package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"grantdesk/internal/models"
	"grantdesk/internal/storage"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("grantdesk/storage")
	meter := otel.Meter("grantdesk/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

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

func (s *InstrumentedStorage) Programs(ctx context.Context) ([]*models.Program, error) {
	ctx, span := s.startSpan(ctx, "Programs")
	start := time.Now()
	result, err := s.inner.Programs(ctx)
	s.record(ctx, span, "Programs", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	ctx, span := s.startSpan(ctx, "GetProgram", attribute.String("program_id", programID))
	start := time.Now()
	result, err := s.inner.GetProgram(ctx, programID)
	s.record(ctx, span, "GetProgram", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveProgram(ctx context.Context, program *models.Program) error {
	ctx, span := s.startSpan(ctx, "SaveProgram", attribute.String("program_id", program.ID))
	start := time.Now()
	err := s.inner.SaveProgram(ctx, program)
	s.record(ctx, span, "SaveProgram", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteProgram(ctx context.Context, programID string) error {
	ctx, span := s.startSpan(ctx, "DeleteProgram", attribute.String("program_id", programID))
	start := time.Now()
	err := s.inner.DeleteProgram(ctx, programID)
	s.record(ctx, span, "DeleteProgram", start, err)
	return err
}

func (s *InstrumentedStorage) Applications(ctx context.Context, ownerKeyID string) ([]*models.Application, error) {
	ctx, span := s.startSpan(ctx, "Applications")
	start := time.Now()
	result, err := s.inner.Applications(ctx, ownerKeyID)
	s.record(ctx, span, "Applications", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetApplication(ctx context.Context, appID string) (*models.Application, error) {
	ctx, span := s.startSpan(ctx, "GetApplication", attribute.String("app_id", appID))
	start := time.Now()
	result, err := s.inner.GetApplication(ctx, appID)
	s.record(ctx, span, "GetApplication", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveApplication(ctx context.Context, app *models.Application) error {
	ctx, span := s.startSpan(ctx, "SaveApplication",
		attribute.String("app_id", app.ID),
		attribute.String("program_id", app.ProgramID),
	)
	start := time.Now()
	err := s.inner.SaveApplication(ctx, app)
	s.record(ctx, span, "SaveApplication", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteApplication(ctx context.Context, appID string) error {
	ctx, span := s.startSpan(ctx, "DeleteApplication", attribute.String("app_id", appID))
	start := time.Now()
	err := s.inner.DeleteApplication(ctx, appID)
	s.record(ctx, span, "DeleteApplication", start, err)
	return err
}

func (s *InstrumentedStorage) APIKeys(ctx context.Context) ([]*models.APIKey, error) {
	ctx, span := s.startSpan(ctx, "APIKeys")
	start := time.Now()
	result, err := s.inner.APIKeys(ctx)
	s.record(ctx, span, "APIKeys", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetAPIKey(ctx context.Context, keyID string) (*models.APIKey, error) {
	ctx, span := s.startSpan(ctx, "GetAPIKey", attribute.String("key_id", keyID))
	start := time.Now()
	result, err := s.inner.GetAPIKey(ctx, keyID)
	s.record(ctx, span, "GetAPIKey", start, err)
	return result, err
}

// GetAPIKeyByHash deliberately records no key attribute; hashes stay out of
// telemetry.
func (s *InstrumentedStorage) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	ctx, span := s.startSpan(ctx, "GetAPIKeyByHash")
	start := time.Now()
	result, err := s.inner.GetAPIKeyByHash(ctx, keyHash)
	s.record(ctx, span, "GetAPIKeyByHash", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	ctx, span := s.startSpan(ctx, "SaveAPIKey", attribute.String("key_id", key.ID))
	start := time.Now()
	err := s.inner.SaveAPIKey(ctx, key)
	s.record(ctx, span, "SaveAPIKey", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteAPIKey(ctx context.Context, keyID string) error {
	ctx, span := s.startSpan(ctx, "DeleteAPIKey", attribute.String("key_id", keyID))
	start := time.Now()
	err := s.inner.DeleteAPIKey(ctx, keyID)
	s.record(ctx, span, "DeleteAPIKey", start, err)
	return err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
