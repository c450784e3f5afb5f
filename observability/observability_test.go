package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/podflow/config"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is not an int64 sum: %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestPodMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewPodMetrics(mp.Meter(InstrumentationName))
	if err != nil {
		t.Fatalf("NewPodMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.RecordCall(ctx, "1:0", "iteratorNext", 5*time.Millisecond, false)
	m.RecordCall(ctx, "1:0", "iteratorNext", 5*time.Millisecond, true)
	m.RecordRead(ctx, "1:0", 7, 4)
	m.RecordRead(ctx, "1:0", 0, 0)
	m.RecordIteratorNext(ctx, "1:0", time.Millisecond)

	got := collect(t, reader)
	if n := sumOf(t, got["pod.calls"]); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}
	if n := sumOf(t, got["pod.call.errors"]); n != 1 {
		t.Errorf("expected 1 error, got %d", n)
	}
	if n := sumOf(t, got["pod.elements.read"]); n != 7 {
		t.Errorf("expected 7 elements, got %d", n)
	}
	if n := sumOf(t, got["pod.batches.produced"]); n != 4 {
		t.Errorf("expected 4 batches, got %d", n)
	}
	hist, ok := got["pod.iterator_next.duration"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("unexpected iterator_next histogram %+v", got["pod.iterator_next.duration"].Data)
	}
}

func TestPodMetricsNilIsNoop(t *testing.T) {
	var m *PodMetrics
	m.RecordCall(context.Background(), "1:0", "start", time.Millisecond, true)
	m.RecordRead(context.Background(), "1:0", 1, 1)
	m.RecordIteratorNext(context.Background(), "1:0", time.Millisecond)
}

func TestNewPodMetricsWithNoopMeter(t *testing.T) {
	m, err := NewPodMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil || m == nil {
		t.Fatalf("expected metrics, got %v", err)
	}
}

func TestSetSpanError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), SpanPodCall)
	SetSpanError(span, errors.New("upstream failed"))
	SetSpanError(span, nil)
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected one span, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Error || ended[0].Status().Description != "upstream failed" {
		t.Errorf("unexpected status %+v", ended[0].Status())
	}
	if len(ended[0].Events()) != 1 {
		t.Errorf("expected one error event, got %d", len(ended[0].Events()))
	}
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanIteratorNext)
	defer span.End()
	if !SpanFromContext(ctx).SpanContext().Equal(span.SpanContext()) {
		t.Error("expected span in context")
	}
}

func TestSamplerFor(t *testing.T) {
	if samplerFor(1).Description() != sdktrace.AlwaysSample().Description() {
		t.Error("rate 1 should always sample")
	}
	if samplerFor(0).Description() != sdktrace.NeverSample().Description() {
		t.Error("rate 0 should never sample")
	}
	if samplerFor(0.5).Description() == sdktrace.AlwaysSample().Description() {
		t.Error("rate 0.5 should be ratio based")
	}
}

func TestNewResource(t *testing.T) {
	res := newResource("podflow", "1.2.3", "staging")
	found := map[string]string{}
	for _, kv := range res.Attributes() {
		found[string(kv.Key)] = kv.Value.AsString()
	}
	if found[AttrServiceName] != "podflow" || found["service.version"] != "1.2.3" || found["deployment.environment"] != "staging" {
		t.Errorf("unexpected attributes %v", found)
	}
}

func TestDefaultConfigs(t *testing.T) {
	tc := DefaultTracerConfig("svc")
	if tc.ServiceName != "svc" || tc.Endpoint != "localhost:4318" || tc.SampleRate != 1.0 || !tc.Insecure {
		t.Errorf("unexpected tracer defaults %+v", tc)
	}
	mc := DefaultMeterConfig("svc")
	if mc.Interval != 15*time.Second || !mc.Insecure {
		t.Errorf("unexpected meter defaults %+v", mc)
	}
}

func TestSetupDisabled(t *testing.T) {
	svc := &config.ServiceConfig{Name: "podflow"}
	svc.ApplyDefaults()

	shutdown, err := Setup(context.Background(), svc)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestInitTracerAndMeter(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracer(ctx, DefaultTracerConfig("podflow-test"))
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	mp, err := InitMeter(ctx, DefaultMeterConfig("podflow-test"))
	if err != nil {
		t.Fatalf("InitMeter failed: %v", err)
	}

	// Nothing listens on the endpoint; only construction is under test.
	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = tp.Shutdown(shutdownCtx)
	_ = mp.Shutdown(shutdownCtx)
}

func TestServiceHealth(t *testing.T) {
	sh := NewServiceHealth("podflow", "1.0.0")
	sh.AddComponent(Health{Name: "1:0", Status: HealthStatusUp})
	if sh.Status != HealthStatusUp {
		t.Errorf("expected up, got %s", sh.Status)
	}
	sh.AddComponent(Health{Name: "2:0", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", sh.Status)
	}
	sh.AddComponent(Health{Name: "3:0", Status: HealthStatusDown})
	sh.AddComponent(Health{Name: "4:0", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("degraded must not override down, got %s", sh.Status)
	}
	if len(sh.Components) != 4 {
		t.Errorf("expected 4 components, got %d", len(sh.Components))
	}
}
