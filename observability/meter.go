package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/podflow/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP host:port, e.g. "localhost:4318".
	Endpoint string
	Insecure bool
	// Interval is the export period.
	Interval time.Duration
}

// DefaultMeterConfig returns development defaults.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a periodic OTLP meter provider as the global one.
func InitMeter(ctx context.Context, cfg MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)),
	)
	otel.SetMeterProvider(mp)

	logger.Get("observability").Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PodMetrics holds the instruments pods and dispatchers record into.
// A nil *PodMetrics records nothing.
type PodMetrics struct {
	calls          metric.Int64Counter
	callDuration   metric.Float64Histogram
	callErrors     metric.Int64Counter
	elementsRead   metric.Int64Counter
	batches        metric.Int64Counter
	iteratorNextMs metric.Float64Histogram
}

// NewPodMetrics creates the pod instruments on meter.
func NewPodMetrics(meter metric.Meter) (*PodMetrics, error) {
	m := &PodMetrics{}
	var err error

	if m.calls, err = meter.Int64Counter("pod.calls",
		metric.WithDescription("Dispatched pod calls"),
	); err != nil {
		return nil, fmt.Errorf("creating pod.calls counter: %w", err)
	}
	if m.callDuration, err = meter.Float64Histogram("pod.call.duration",
		metric.WithDescription("Duration of pod calls"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating pod.call.duration histogram: %w", err)
	}
	if m.callErrors, err = meter.Int64Counter("pod.call.errors",
		metric.WithDescription("Pod calls that produced a failed result"),
	); err != nil {
		return nil, fmt.Errorf("creating pod.call.errors counter: %w", err)
	}
	if m.elementsRead, err = meter.Int64Counter("pod.elements.read",
		metric.WithDescription("Elements pulled from pod upstreams"),
	); err != nil {
		return nil, fmt.Errorf("creating pod.elements.read counter: %w", err)
	}
	if m.batches, err = meter.Int64Counter("pod.batches.produced",
		metric.WithDescription("Batches appended to consumer buffers"),
	); err != nil {
		return nil, fmt.Errorf("creating pod.batches.produced counter: %w", err)
	}
	if m.iteratorNextMs, err = meter.Float64Histogram("pod.iterator_next.duration",
		metric.WithDescription("Duration of iteratorNext including upstream reads"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating pod.iterator_next.duration histogram: %w", err)
	}
	return m, nil
}

// RecordCall records one dispatched call.
func (m *PodMetrics) RecordCall(ctx context.Context, pod, method string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPod, pod),
		attribute.String(AttrMethod, method),
		attribute.String(AttrStatus, status),
	))
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrPod, pod),
		attribute.String(AttrMethod, method),
	))
	if failed {
		m.callErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrPod, pod),
			attribute.String(AttrMethod, method),
		))
	}
}

// RecordRead records elements pulled from an upstream in one IteratorNext.
func (m *PodMetrics) RecordRead(ctx context.Context, pod string, elements, batches int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrPod, pod))
	if elements > 0 {
		m.elementsRead.Add(ctx, int64(elements), attrs)
	}
	if batches > 0 {
		m.batches.Add(ctx, int64(batches), attrs)
	}
}

// RecordIteratorNext records the latency of one IteratorNext.
func (m *PodMetrics) RecordIteratorNext(ctx context.Context, pod string, duration time.Duration) {
	if m == nil {
		return
	}
	m.iteratorNextMs.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrPod, pod)))
}
