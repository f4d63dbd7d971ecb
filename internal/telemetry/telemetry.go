// Package telemetry initializes OpenTelemetry tracing and metrics exporters.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Shutdown combines multiple shutdown functions.
type Shutdown func(ctx context.Context) error

// Init configures the global OpenTelemetry tracer and meter providers.
// If endpoint is empty, OTEL is disabled and no-op providers are used.
// Returns a shutdown function that must be called during graceful shutdown.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(ctx context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	// Trace exporter.
	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
	}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}
	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Register W3C Trace Context and Baggage propagators so incoming
	// traceparent headers are honored and outgoing LLM calls carry context.
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	// Metric exporter.
	metricOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(endpoint),
	}
	if insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(15*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		var firstErr error
		if err := tp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	return shutdown, nil
}

// Meter returns the global meter for the given instrumentation scope.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// RunMetrics instruments the deck generation pipeline. A nil receiver
// records nothing, so callers need no readiness checks.
type RunMetrics struct {
	started   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewRunMetrics registers the pipeline instruments on the global meter.
func NewRunMetrics() (*RunMetrics, error) {
	meter := Meter("decksmith/orchestrator")

	started, err := meter.Int64Counter("decksmith.runs.started",
		metric.WithDescription("Generation runs started"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: runs.started: %w", err)
	}
	completed, err := meter.Int64Counter("decksmith.runs.completed",
		metric.WithDescription("Generation runs completed"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: runs.completed: %w", err)
	}
	failed, err := meter.Int64Counter("decksmith.runs.failed",
		metric.WithDescription("Generation runs failed"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: runs.failed: %w", err)
	}
	duration, err := meter.Float64Histogram("decksmith.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("End-to-end run duration"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: run.duration: %w", err)
	}

	return &RunMetrics{
		started:   started,
		completed: completed,
		failed:    failed,
		duration:  duration,
	}, nil
}

// RunStarted counts a run entering its pipeline.
func (m *RunMetrics) RunStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.started.Add(ctx, 1)
}

// RunCompleted counts a successful run and records its duration, tagged
// with the slide count of the finished deck.
func (m *RunMetrics) RunCompleted(ctx context.Context, slides int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1, metric.WithAttributes(attribute.Int("decksmith.total_slides", slides)))
	m.duration.Record(ctx, elapsed.Seconds())
}

// RunFailed counts a failed run, tagged with the stage that broke.
func (m *RunMetrics) RunFailed(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("decksmith.stage", stage)))
}
