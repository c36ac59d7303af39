package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
)

// Metrics holds the counters/histograms shared across the service.
type Metrics struct {
	IndicatorsIngested metric.Int64Counter
	EnrichmentCalls    metric.Int64Counter
	EnrichmentFailures metric.Int64Counter
	FeedRefreshLag     metric.Float64Histogram
	PurgeDuration      metric.Float64Histogram
}

// InitMetrics sets up a global OTLP metrics exporter (push-based).
// Returns a shutdown func and the common instrument set.
func InitMetrics(ctx context.Context, service string) (shutdown func(context.Context) error, m Metrics) {
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		attribute.String("service", service),
	))
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("metrics exporter init failed", "error", err)
		return func(context.Context) error { return nil }, createInstruments()
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", endpoint)
	return mp.Shutdown, createInstruments()
}

func createInstruments() Metrics {
	meter := otel.Meter(meterName)
	ingested, _ := meter.Int64Counter("threat_intel_indicators_ingested_total")
	calls, _ := meter.Int64Counter("threat_intel_enrichment_calls_total")
	failures, _ := meter.Int64Counter("threat_intel_enrichment_failures_total")
	lag, _ := meter.Float64Histogram("threat_intel_feed_refresh_lag_seconds")
	purge, _ := meter.Float64Histogram("threat_intel_purge_duration_seconds")
	return Metrics{
		IndicatorsIngested: ingested,
		EnrichmentCalls:    calls,
		EnrichmentFailures: failures,
		FeedRefreshLag:     lag,
		PurgeDuration:      purge,
	}
}
