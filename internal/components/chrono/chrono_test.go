package chrono

import (
	"errors"
	"testing"
	"time"

	"dlstracker-backend/internal/components/chrono/chronotest"
	"dlstracker-backend/internal/components/telemetry/telemetrytest"

	"github.com/stretchr/testify/require"
)

func TestSince(t *testing.T) {
	clock := chronotest.NewClock()
	start := clock.Now()
	clock.Advance(time.Minute * 3)
	require.Equal(t, time.Minute*3, Since(clock, start))
}

func TestStandardImplIsUTC(t *testing.T) {
	require.Equal(t, time.UTC, NewStandardImpl().Now().Location())
}

func TestStandardCronRejectsBadSpec(t *testing.T) {
	cron := NewStandardCron(&telemetrytest.Recorder{})
	defer cron.Stop()
	require.Error(t, cron.Cron("not a schedule", func() {}))
	require.NoError(t, cron.Cron("@every 1h", func() {}))
}

func TestCronReporter(t *testing.T) {
	rec := &telemetrytest.Recorder{}
	reporter := cronReporter{tel: rec}

	reporter.Error(errors.New("boom"), "panic", "job", "sweep", "dangling")
	broken := rec.Reports(telemetrytest.KindBroken)
	require.Len(t, broken, 1)
	require.Equal(t, report_cron_job, broken[0].ID)
	require.Len(t, broken[0].Params, 2)
	require.EqualError(t, broken[0].Params[0].(error), "panic: boom")
	require.Equal(t, "job=sweep", broken[0].Params[1])
}
