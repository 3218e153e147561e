package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetupWithoutCollectors(t *testing.T) {
	tel, err := Setup(context.Background(), "trackerd-test", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestOtlpConfig(t *testing.T) {
	require.False(t, OtlpConnConfig{}.enabled())

	kind, endpoint := OtlpConnConfig{
		GrpcEndpoint: "http://localhost:4317",
		HttpEndpoint: "http://localhost:4318",
	}.transport()
	require.Equal(t, "grpc", kind)
	require.Equal(t, "http://localhost:4317", endpoint)

	kind, _ = OtlpConnConfig{HttpEndpoint: "http://localhost:4318"}.transport()
	require.Equal(t, "http", kind)

	require.Equal(t, time.Second*15, OtlpConfig{}.metricInterval())
	require.Equal(t, time.Minute, OtlpConfig{MetricIntervalSeconds: 60}.metricInterval())
}

func TestPerfStatsSamplesGauges(t *testing.T) {
	reads := 0
	stats, err := newPerfStats([]Gauge{{
		Name: "cached_teams",
		Read: func(ctx context.Context) (int64, error) {
			reads++
			return 3, nil
		},
	}})
	require.NoError(t, err)

	stats.sample(context.Background())
	require.Equal(t, 1, reads)
}
