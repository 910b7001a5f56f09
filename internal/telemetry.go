package internal

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "bletel"

// Telemetry groups the logger, the tracer and the meter of a component.
type Telemetry struct {
	kind string
	name string

	l *Logger

	tracer trace.Tracer
	meter  metric.Meter
}

// NewTelemetry returns the telemetry of the component with the given kind and name.
// Tracer and meter are taken from the global otel providers.
func NewTelemetry(kind, name string) *Telemetry {
	return newTelemetry(NewLogger(kind, name), kind, name)
}

func newTelemetry(l *Logger, kind, name string) *Telemetry {
	return &Telemetry{
		kind: kind,
		name: name,

		l: l,

		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
		meter:  otel.GetMeterProvider().Meter(instrumentationName),
	}
}

func (t *Telemetry) Logger() *Logger {
	return t.l
}

func (t *Telemetry) Name() string {
	return t.name
}

func (t *Telemetry) LogInfo(msg string, args ...any) {
	t.l.Info(msg, args...)
}

func (t *Telemetry) LogDebug(msg string, args ...any) {
	t.l.Debug(msg, args...)
}

func (t *Telemetry) LogWarn(msg string, args ...any) {
	t.l.Warn(msg, args...)
}

func (t *Telemetry) LogError(msg string, err error, args ...any) {
	t.l.Error(msg, err, args...)
}

func (t *Telemetry) setDefaultAttributes(span trace.Span) {
	span.SetAttributes(
		attribute.String("bletel.kind", t.kind),
		attribute.String("bletel.name", t.name),
	)
}

// NewTrace starts a span tagged with the kind and the name of the component.
func (t *Telemetry) NewTrace(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, spanName, opts...)
	t.setDefaultAttributes(span)
	return ctx, span
}

func (t *Telemetry) getMeterName(name string) string {
	return fmt.Sprintf("%s_%s_%s", t.kind, t.name, name)
}

func (t *Telemetry) NewCounter(name string, opts ...metric.Int64CounterOption) metric.Int64Counter {
	counterName := t.getMeterName(name)
	counter, err := t.meter.Int64Counter(counterName, opts...)
	if err != nil {
		t.LogError("failed to create counter", err, "name", name)
		return noop.Int64Counter{}
	}

	t.LogDebug("created counter", "name", counterName)

	return counter
}

func (t *Telemetry) NewUpDownCounter(name string, opts ...metric.Int64UpDownCounterOption) metric.Int64UpDownCounter {
	counterName := t.getMeterName(name)
	counter, err := t.meter.Int64UpDownCounter(counterName, opts...)
	if err != nil {
		t.LogError("failed to create up/down counter", err, "name", name)
		return noop.Int64UpDownCounter{}
	}

	t.LogDebug("created up/down counter", "name", counterName)

	return counter
}

func (t *Telemetry) NewHistogram(name string, opts ...metric.Int64HistogramOption) metric.Int64Histogram {
	histName := t.getMeterName(name)
	hist, err := t.meter.Int64Histogram(histName, opts...)
	if err != nil {
		t.LogError("failed to create histogram", err, "name", name)
		return noop.Int64Histogram{}
	}

	t.LogDebug("created histogram", "name", histName)

	return hist
}

// NewGauge registers an observable gauge whose value is read from fn
// every time the metrics are collected.
func (t *Telemetry) NewGauge(name string, fn func() int64, opts ...metric.Int64ObservableGaugeOption) {
	gaugeName := t.getMeterName(name)

	opts = append(opts, metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
		obs.Observe(fn())
		return nil
	}))

	if _, err := t.meter.Int64ObservableGauge(gaugeName, opts...); err != nil {
		t.LogError("failed to create gauge", err, "name", name)
		return
	}

	t.LogDebug("created gauge", "name", gaugeName)
}

// NewObservableCounter registers a counter whose value is read from fn
// every time the metrics are collected.
func (t *Telemetry) NewObservableCounter(name string, fn func() int64, opts ...metric.Int64ObservableCounterOption) {
	counterName := t.getMeterName(name)

	opts = append(opts, metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
		obs.Observe(fn())
		return nil
	}))

	if _, err := t.meter.Int64ObservableCounter(counterName, opts...); err != nil {
		t.LogError("failed to create observable counter", err, "name", name)
		return
	}

	t.LogDebug("created observable counter", "name", counterName)
}
