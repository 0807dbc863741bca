// Package observability sets up OpenTelemetry tracing for a load run.
//
// Spans are exported with the stdout exporter into a file chosen by the
// operator. Without a trace file the global no-op tracer provider stays in
// place and spans cost next to nothing.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/cqlload/pkg/errors"
)

// TracerName is the instrumentation scope of every span cqlload emits.
const TracerName = "github.com/ajitpratap0/cqlload"

// BatchSpanName is the span wrapping one batch write.
const BatchSpanName = "cqlload.insert_batch"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	// File receives the exported spans; empty disables tracing
	File         string
	SamplingRate float64
	BatchTimeout time.Duration
}

// DefaultTracingConfig returns tracing disabled with full sampling.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:  "cqlload",
		SamplingRate: 1.0,
		BatchTimeout: 5 * time.Second,
	}
}

// Tracing owns the tracer provider installed by InitTracing.
type Tracing struct {
	provider *sdktrace.TracerProvider
	out      io.Closer
}

// InitTracing installs a global tracer provider exporting to config.File.
// With an empty File it returns a Tracing whose Shutdown does nothing.
func InitTracing(config TracingConfig) (*Tracing, error) {
	if config.File == "" {
		return &Tracing{}, nil
	}

	f, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open trace file").
			WithDetail("trace_file", config.File)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create trace resource")
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create trace exporter")
	}

	batchTimeout := config.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(config.SamplingRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)
	otel.SetTracerProvider(tp)

	return &Tracing{provider: tp, out: f}, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans and closes the trace file.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}

	var errs []error
	if err := t.provider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown tracer: %w", err))
	}
	if err := t.out.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close trace file: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// Tracer returns the cqlload tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// TraceBatch runs fn inside a batch write span and records its outcome.
func TraceBatch(ctx context.Context, batchID uint64, size int, fn func(ctx context.Context) error) error {
	ctx, span := Tracer().Start(ctx, BatchSpanName, trace.WithAttributes(
		attribute.Int64("batch.id", int64(batchID)),
		attribute.Int("batch.size", size),
	))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
