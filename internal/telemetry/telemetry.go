// Package telemetry wires OpenTelemetry tracing and metrics for opsconsole.
//
// Telemetry is off unless telemetry.enabled is set in opsconsole.yml. When
// off, no-op providers are installed and instrumentation costs nothing.
//
// Exporters:
//
//   - stdout: pretty-printed spans and periodic metrics (telemetry.stdout)
//   - OTLP/HTTP metrics: telemetry.otlp_endpoint, e.g. localhost:4318
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"opsconsole/internal/config"
)

const instrumentationScope = "opsconsole/engine"

// Shutdown flushes and stops whatever Init installed.
type Shutdown func(context.Context) error

// Init configures global OTel providers from cfg. Stdout output goes to w
// (os.Stderr when nil) so it never mixes with command output.
func Init(ctx context.Context, cfg config.Telemetry, version string, w io.Writer) (Shutdown, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}
	if w == nil {
		w = os.Stderr
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	var shutdownFns []func(context.Context) error

	tp, err := buildTraceProvider(cfg, res, w)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	mp, err := buildMetricProvider(ctx, cfg, res, w)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: metric provider: %w", err)
	}
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}, nil
}

func buildTraceProvider(cfg config.Telemetry, res *resource.Resource, w io.Writer) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	// Traces have no OTLP exporter wired, so stdout is the fallback sink.
	if cfg.Stdout || cfg.OTLPEndpoint == "" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(w))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func buildMetricProvider(ctx context.Context, cfg config.Telemetry, res *resource.Resource, w io.Writer) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)),
		))
	}
	if cfg.OTLPEndpoint != "" {
		exp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second)),
		))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns the engine tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationScope)
}

// Meter returns the engine meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationScope)
}

type instruments struct {
	ops  metric.Int64Counter
	errs metric.Int64Counter
	dur  metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     instruments
)

// Instruments are created once against the global meter; the global
// provider delegates them to whatever Init installs later.
func engineInstruments() instruments {
	instOnce.Do(func() {
		m := Meter()
		inst.ops, _ = m.Int64Counter("opsconsole.engine.operations",
			metric.WithDescription("Engine mutations executed"),
		)
		inst.errs, _ = m.Int64Counter("opsconsole.engine.errors",
			metric.WithDescription("Engine mutations that failed"),
		)
		inst.dur, _ = m.Float64Histogram("opsconsole.engine.operation.duration",
			metric.WithDescription("Engine mutation duration in milliseconds"),
			metric.WithUnit("ms"),
		)
	})
	return inst
}

// StartOp opens a span named "engine.<name>" and counts the operation. The
// returned func ends the span and records err, if any.
func StartOp(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	in := engineInstruments()
	all := append([]attribute.KeyValue{attribute.String("opsconsole.operation", name)}, attrs...)
	ctx, span := Tracer().Start(ctx, "engine."+name, trace.WithAttributes(all...))
	in.ops.Add(ctx, 1, metric.WithAttributes(all[0]))
	start := time.Now()
	return ctx, func(err error) {
		in.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(all[0]))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			in.errs.Add(ctx, 1, metric.WithAttributes(all[0]))
		}
		span.End()
	}
}

// Annotate adds attributes to the current span.
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
