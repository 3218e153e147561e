package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

const exporterDialTimeout = time.Second * 3

// OtlpConnConfig is the collector for one signal. The grpc endpoint wins when both are set.
type OtlpConnConfig struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (c OtlpConnConfig) enabled() bool {
	return c.GrpcEndpoint != "" || c.HttpEndpoint != ""
}

func (c OtlpConnConfig) transport() (kind, endpoint string) {
	if c.GrpcEndpoint != "" {
		return "grpc", c.GrpcEndpoint
	}
	return "http", c.HttpEndpoint
}

type OtlpConfig struct {
	Traces  OtlpConnConfig `json:"traces"`
	Metrics OtlpConnConfig `json:"metrics"`
	// TraceSampleRatio is the fraction of root spans kept, 0 keeps all of them.
	// Scrape sessions are long lived and few, sampling is mostly useful for http requests.
	TraceSampleRatio float64 `json:"trace_sample_ratio"`
	// MetricIntervalSeconds is how often metrics are pushed, 0 means every 15 seconds.
	MetricIntervalSeconds int `json:"metric_interval_seconds"`
}

func (c OtlpConfig) sampler() trace.Sampler {
	if c.TraceSampleRatio <= 0 || c.TraceSampleRatio >= 1 {
		return trace.ParentBased(trace.AlwaysSample())
	}
	return trace.ParentBased(trace.TraceIDRatioBased(c.TraceSampleRatio))
}

func (c OtlpConfig) metricInterval() time.Duration {
	if c.MetricIntervalSeconds <= 0 {
		return time.Second * 15
	}
	return time.Duration(c.MetricIntervalSeconds) * time.Second
}

// newTraceProvider returns nil when no trace collector is configured.
func newTraceProvider(ctx context.Context, r *resource.Resource, c OtlpConfig) (*trace.TracerProvider, error) {
	if !c.Traces.enabled() {
		return nil, nil
	}
	exporter, err := newSpanExporter(ctx, c.Traces)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
		trace.WithSampler(c.sampler()),
	), nil
}

func newSpanExporter(ctx context.Context, c OtlpConnConfig) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	kind, endpoint := c.transport()
	slog.Info("span exporter initialized", "type", kind, "endpoint", endpoint)
	if kind == "grpc" {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(endpoint),
			otlptracegrpc.WithHeaders(c.Headers),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(endpoint),
		otlptracehttp.WithHeaders(c.Headers),
	)
}

// newMetricProvider returns nil when no metric collector is configured.
func newMetricProvider(ctx context.Context, r *resource.Resource, c OtlpConfig) (*metric.MeterProvider, error) {
	if !c.Metrics.enabled() {
		return nil, nil
	}
	exporter, err := newMetricExporter(ctx, c.Metrics)
	if err != nil {
		return nil, err
	}
	reader := metric.NewPeriodicReader(exporter, metric.WithInterval(c.metricInterval()))
	return metric.NewMeterProvider(
		metric.WithReader(reader),
		metric.WithResource(r),
	), nil
}

func newMetricExporter(ctx context.Context, c OtlpConnConfig) (metric.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	kind, endpoint := c.transport()
	slog.Info("metric exporter initialized", "type", kind, "endpoint", endpoint)
	if kind == "grpc" {
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(endpoint),
			otlpmetricgrpc.WithHeaders(c.Headers),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(endpoint),
		otlpmetrichttp.WithHeaders(c.Headers),
	)
}
