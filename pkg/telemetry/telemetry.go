// Package telemetry sets up OpenTelemetry tracing. Submissions and confirmation
// emails are traced through the global provider installed by Init.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/config"
)

const defaultServiceName = "leadform"

// Options configures the TracerProvider.
type Options struct {
	// Enabled false installs a no-op provider.
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Exporter is "otlp" (default), "stdout" or "none".
	Exporter string
	// Endpoint of the OTLP collector, e.g. "otel-collector:4317".
	Endpoint string
	Insecure bool
	// SamplingRate outside (0, 1] samples every trace.
	SamplingRate float64
	Logger       *zap.SugaredLogger
}

// FromConfig maps the tracing section of the leadform configuration.
func FromConfig(cfg config.Tracing, serviceVersion string, log *zap.SugaredLogger) Options {
	return Options{
		Enabled:        cfg.Enabled,
		ServiceName:    defaultServiceName,
		ServiceVersion: serviceVersion,
		Exporter:       cfg.Exporter,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SamplingRate:   cfg.SamplingRate,
		Logger:         log,
	}
}

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(ctx context.Context) error

// Init installs the global TracerProvider and propagator. The returned ShutdownFunc
// must run during graceful shutdown; for a disabled provider it does nothing.
func Init(ctx context.Context, opts Options) (trace.TracerProvider, ShutdownFunc, error) {
	if !opts.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}

	if opts.ServiceName == "" {
		opts.ServiceName = defaultServiceName
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.SamplingRate <= 0 || opts.SamplingRate > 1.0 {
		log.Warnw("OTel sampling rate out of range, sampling every trace", "provided", opts.SamplingRate)
		opts.SamplingRate = 1.0
	}

	// schemaless avoids schema URL conflicts with resource.Default()
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", opts.ServiceName),
			attribute.String("service.version", opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating OTel resource: %w", err)
	}

	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SamplingRate))),
	}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	// export failures go to the structured log instead of stderr
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Warnw("OpenTelemetry internal error", "error", err)
	}))

	log.Infow("Tracing enabled",
		"exporter", opts.Exporter,
		"endpoint", opts.Endpoint,
		"samplingRate", opts.SamplingRate,
	)

	return tp, func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	}, nil
}

// newExporter returns nil for "none": spans are recorded but not exported.
func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case "otlp", "":
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP gRPC exporter: %w", err)
		}
		return exp, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		return exp, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown OTel exporter %q: supported values are otlp, stdout, none", opts.Exporter)
	}
}
