// Package telemetry installs the OpenTelemetry providers
// that export the traces and the metrics of the pipeline.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceVersion = "0.1.0"

type Config struct {
	ServiceName string

	// TraceEndpoint is the host:port of the OTLP gRPC trace collector.
	TraceEndpoint string
	// MetricEndpoint is the host:port of the OTLP HTTP metric collector.
	MetricEndpoint string

	SampleRatio    float64
	ExportInterval time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		ServiceName: "bletel",

		TraceEndpoint:  "localhost:4317",
		MetricEndpoint: "localhost:4318",

		SampleRatio:    0.05,
		ExportInterval: time.Second,
	}
}

// Providers holds the installed SDK providers.
type Providers struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Init creates the OTLP exporters and installs the providers as the global ones.
func Init(ctx context.Context, cfg *Config) (*Providers, error) {
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	traceExporter, err := newTraceExporter(ctx, cfg.TraceEndpoint)
	if err != nil {
		return nil, err
	}

	meterExporter, err := newMeterExporter(ctx, cfg.MetricEndpoint)
	if err != nil {
		return nil, errors.Join(err, traceExporter.Shutdown(ctx))
	}

	p := &Providers{
		tracerProvider: newTraceProvider(res, traceExporter, cfg.SampleRatio),
		meterProvider:  newMeterProvider(res, meterExporter, cfg.ExportInterval),
	}

	p.install()

	return p, nil
}

func (p *Providers) install() {
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	otel.SetMeterProvider(p.meterProvider)
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.tracerProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
	)
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
}

func newTraceExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(endpoint),
	)
}

func newTraceProvider(res *resource.Resource, exporter sdktrace.SpanExporter, sampleRatio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRatio)),
	)
}

func newMeterExporter(ctx context.Context, endpoint string) (*otlpmetrichttp.Exporter, error) {
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithInsecure(),
		otlpmetrichttp.WithEndpoint(endpoint),
	)
}

func newMeterProvider(res *resource.Resource, exporter sdkmetric.Exporter, interval time.Duration) *sdkmetric.MeterProvider {
	if interval <= 0 {
		interval = time.Second
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)),
		),
	)
}
