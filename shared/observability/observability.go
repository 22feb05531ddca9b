package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Trace exporters
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Options selects the exporters
type Options struct {
	ServiceName    string
	TracesExporter string
	// TraceOutput receives stdout spans; defaults to os.Stdout
	TraceOutput io.Writer
	// Registerer receives the OTel metric collector; defaults to the
	// Prometheus default registry served on /metrics
	Registerer prometheus.Registerer
}

// Telemetry owns the SDK providers installed as OTel globals
type Telemetry struct {
	Tracer *trace.TracerProvider
	Meter  *metric.MeterProvider
}

// Setup installs the tracer and meter providers. With the "none" exporter
// spans are sampled out but the meter provider is still bridged to Prometheus.
func Setup(opts Options) (*Telemetry, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "audio-library"
	}
	if opts.TraceOutput == nil {
		opts.TraceOutput = os.Stdout
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	tracerOpts := []trace.TracerProviderOption{trace.WithResource(res)}
	switch opts.TracesExporter {
	case "", ExporterNone:
		tracerOpts = append(tracerOpts, trace.WithSampler(trace.NeverSample()))
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.TraceOutput))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize stdouttrace exporter: %w", err)
		}
		tracerOpts = append(tracerOpts, trace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown traces exporter %q", opts.TracesExporter)
	}

	exp, err := otelprom.New(otelprom.WithRegisterer(opts.Registerer))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}

	t := &Telemetry{
		Tracer: trace.NewTracerProvider(tracerOpts...),
		Meter:  metric.NewMeterProvider(metric.WithReader(exp), metric.WithResource(res)),
	}
	otel.SetTracerProvider(t.Tracer)
	otel.SetMeterProvider(t.Meter)
	return t, nil
}

// Shutdown flushes pending spans and stops both providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Tracer.Shutdown(ctx), t.Meter.Shutdown(ctx))
}
