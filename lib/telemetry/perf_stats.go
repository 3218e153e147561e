package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const perfStatsMeter = "dlstracker.perf_stats"

// Gauge is an application value sampled together with the process stats, ex. the number of
// cached teams.
type Gauge struct {
	Name string
	Read func(ctx context.Context) (int64, error)
}

type appGauge struct {
	name  string
	read  func(ctx context.Context) (int64, error)
	gauge metric.Int64Gauge
}

type perfStats struct {
	cpu        metric.Float64Gauge
	memory     metric.Int64Gauge
	goroutines metric.Int64Gauge
	app        []appGauge
}

func newPerfStats(gauges []Gauge) (perfStats, error) {
	meter := otel.Meter(perfStatsMeter)

	var s perfStats
	var err error
	s.cpu, err = meter.Float64Gauge("cpu_usage", metric.WithUnit("%"))
	if err != nil {
		return s, err
	}
	s.memory, err = meter.Int64Gauge("allocated_mb", metric.WithUnit("MBy"))
	if err != nil {
		return s, err
	}
	s.goroutines, err = meter.Int64Gauge("goroutine_count")
	if err != nil {
		return s, err
	}
	for _, g := range gauges {
		gauge, err := meter.Int64Gauge(g.Name)
		if err != nil {
			return s, err
		}
		s.app = append(s.app, appGauge{name: g.Name, read: g.Read, gauge: gauge})
	}
	return s, nil
}

func (s perfStats) sample(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	s.memory.Record(ctx, int64(memStats.Alloc/1_000_000))
	s.goroutines.Record(ctx, int64(runtime.NumGoroutine()))

	cpuUsage, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		slog.Debug("failed to read cpu usage", "err", err)
	} else if len(cpuUsage) > 0 {
		s.cpu.Record(ctx, cpuUsage[0])
	}

	for _, g := range s.app {
		value, err := g.read(ctx)
		if err != nil {
			slog.Debug("failed to read gauge", "gauge", g.name, "err", err)
			continue
		}
		g.gauge.Record(ctx, value)
	}
}

// InstrumentPerfStats records process gauges and the given application gauges every interval
// until ctx is done. It returns immediately.
func InstrumentPerfStats(ctx context.Context, interval time.Duration, gauges ...Gauge) {
	stats, err := newPerfStats(gauges)
	if err != nil {
		slog.Warn("perf stats disabled", "err", err)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats.sample(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
