// Package tracing wires go.opentelemetry.io/otel for the evaluation
// orchestration service: a TracerProvider that exports spans to stdout in
// dev mode, and a no-op provider otherwise. Declared but never imported by
// the teacher's own code; this is the first concern in this module that
// actually exercises it, grounded on the SDK's own documented wiring
// (NewTracerProvider + WithBatcher + a Resource) rather than on any example
// repo, since none of the examples import the otel packages either.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is the resource attribute value every span emitted by this
// module is tagged with.
const ServiceName = "sentinel-gate-pdp"

// Shutdown flushes and stops a TracerProvider built by New.
type Shutdown func(context.Context) error

// New builds a TracerProvider. When verbose is true, spans are written to
// stdout (one JSON object per span) via stdouttrace — suited to the
// evaluate/validate-policy CLI's local experimentation use case. When
// false, it returns otel's no-op provider so evaluation_service's span
// calls are free.
func New(verbose bool) (trace.TracerProvider, Shutdown, error) {
	if !verbose {
		return trace.NewNoopTracerProvider(), func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: build stdout exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return tp, func(ctx context.Context) error { return tp.Shutdown(ctx) }, nil
}

// Tracer returns the named tracer a caller should hold onto for the
// lifetime of the service rather than re-resolving per-span.
func Tracer(tp trace.TracerProvider, name string) trace.Tracer {
	return tp.Tracer(name)
}

// NewMeterProvider builds a MeterProvider alongside New's TracerProvider:
// a second, independent otel signal (counters/histograms reported via
// periodic stdout export) for a host that wants OTLP-shaped metrics
// alongside the prometheus.Registerer metrics in
// internal/adapter/outbound/metrics — the two are not mutually exclusive,
// since one is pull-based (Prometheus scrape) and the other push-based
// (otel periodic export).
func NewMeterProvider(verbose bool) (metric.MeterProvider, Shutdown, error) {
	if !verbose {
		return noop.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: build stdout metric exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)

	return mp, func(ctx context.Context) error { return mp.Shutdown(ctx) }, nil
}
