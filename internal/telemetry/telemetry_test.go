package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSetup_DisabledInstallsPropagatorOnly(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false, ServiceName: "slotline"})
	if err != nil {
		t.Fatalf("Setup error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}

	fields := otel.GetTextMapPropagator().Fields()
	var sawTraceparent bool
	for _, f := range fields {
		if f == "traceparent" {
			sawTraceparent = true
		}
	}
	if !sawTraceparent {
		t.Fatalf("propagator fields = %v, want traceparent", fields)
	}
}

func TestNewMeterProvider_ReportsThroughReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProvider(nil, reader)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	counter, err := mp.Meter("test").Int64Counter("booking.conflict.total")
	if err != nil {
		t.Fatalf("Int64Counter error: %v", err)
	}
	counter.Add(context.Background(), 2)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(rm.ScopeMetrics) != 1 || len(rm.ScopeMetrics[0].Metrics) != 1 {
		t.Fatalf("scope metrics = %+v, want one metric", rm.ScopeMetrics)
	}
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Fatalf("data = %+v, want sum of 2", rm.ScopeMetrics[0].Metrics[0].Data)
	}
}

func TestMetricInterval_Default(t *testing.T) {
	if got := metricInterval(0); got != defaultMetricInterval {
		t.Fatalf("metricInterval(0) = %v, want %v", got, defaultMetricInterval)
	}
	if got := metricInterval(5 * time.Second); got != 5*time.Second {
		t.Fatalf("metricInterval(5s) = %v, want 5s", got)
	}
}
