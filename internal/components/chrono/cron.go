package chrono

import (
	"context"
	"fmt"

	"dlstracker-backend/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

// CronAPI schedules recurring jobs.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron runs jobs with `github.com/robfig/cron/v3`. A job never overlaps with its previous
// run and a panicking job is reported instead of crashing the process.
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron starts the scheduler immediately.
func NewStandardCron(tel telemetry.API) StandardCron {
	reporter := cronReporter{tel: telemetry.NewScopedAPI("cron", tel)}
	scheduler := cron.New(
		cron.WithLogger(reporter),
		cron.WithChain(
			cron.Recover(reporter),
			cron.SkipIfStillRunning(reporter),
		),
	)
	scheduler.Start()
	return StandardCron{cron: scheduler}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Stop stops scheduling new runs, the returned context is done once running jobs have finished.
func (s StandardCron) Stop() context.Context {
	return s.cron.Stop()
}

const report_cron_job = "job"

// cronReporter adapts telemetry.API to cron.Logger.
type cronReporter struct {
	tel telemetry.API
}

func pairs(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, fmt.Sprintf("%v=%v", keysAndValues[i], keysAndValues[i+1]))
	}
	return out
}

func (r cronReporter) Info(msg string, keysAndValues ...any) {
	r.tel.ReportDebug(msg, pairs(keysAndValues)...)
}

func (r cronReporter) Error(err error, msg string, keysAndValues ...any) {
	params := append([]any{fmt.Errorf("%s: %w", msg, err)}, pairs(keysAndValues)...)
	r.tel.ReportBroken(report_cron_job, params...)
}
