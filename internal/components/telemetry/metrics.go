package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsAPI turns reports into otel metrics: broken and warning reports increment counters keyed
// by id and counts are recorded as a gauge. Debug reports are dropped.
type MetricsAPI struct {
	broken  metric.Int64Counter
	warning metric.Int64Counter
	counts  metric.Int64Gauge
}

// NewMetricsAPI uses the global meter provider, call it after the provider is set.
func NewMetricsAPI() (MetricsAPI, error) {
	meter := otel.Meter("dlstracker.components")

	broken, err := meter.Int64Counter("component.broken")
	if err != nil {
		return MetricsAPI{}, err
	}
	warning, err := meter.Int64Counter("component.warning")
	if err != nil {
		return MetricsAPI{}, err
	}
	counts, err := meter.Int64Gauge("component.count")
	if err != nil {
		return MetricsAPI{}, err
	}
	return MetricsAPI{broken: broken, warning: warning, counts: counts}, nil
}

func idAttr(id string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("id", id))
}

func (m MetricsAPI) ReportBroken(id string, params ...any) {
	m.broken.Add(context.Background(), 1, idAttr(id))
}

func (m MetricsAPI) ReportWarning(id string, params ...any) {
	m.warning.Add(context.Background(), 1, idAttr(id))
}

func (MetricsAPI) ReportDebug(string, ...any) {}

func (m MetricsAPI) ReportCount(id string, count int64) {
	m.counts.Record(context.Background(), count, idAttr(id))
}
