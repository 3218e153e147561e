package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"dlstracker-backend/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer returns a named tracer from the global provider.
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// Shutdown flushes and stops whichever providers were started.
func (t Telemetry) Shutdown(ctx context.Context) error {
	return shutdown(ctx, t.TracerProvider, t.MeterProvider)
}

func shutdown(ctx context.Context, tp *trace.TracerProvider, mp *metric.MeterProvider) error {
	var errs []error
	if tp != nil {
		errs = append(errs, tp.Shutdown(ctx))
	}
	if mp != nil {
		errs = append(errs, mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

// SetupFromEnv searches up the filesystem from the cwd to find a file called telemetry.json5,
// once found it will then use it as a config to setup telemetry. When no such file exists
// telemetry export is left disabled and an empty Telemetry is returned.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if os.IsNotExist(err) {
		slog.Debug("telemetry.json5 not found, otlp export disabled")
		return Telemetry{}, nil
	}
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, config)
}

func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	tracerProvider, err := newTraceProvider(ctx, r, config.Otlp)
	if err != nil {
		return Telemetry{}, err
	}
	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	meterProvider, err := newMetricProvider(ctx, r, config.Otlp)
	if err != nil {
		return Telemetry{}, errors.Join(err, shutdown(ctx, tracerProvider, nil))
	}
	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	return Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
	}, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}
