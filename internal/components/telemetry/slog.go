package telemetry

import (
	"fmt"
	"log/slog"
)

// SlogAPI writes reports to a slog.Logger. Broken reports are errors, warnings are warnings and
// counts are logged at info.
type SlogAPI struct {
	logger *slog.Logger
}

// NewSlogAPI writes to logger, nil means slog.Default() at the time of each report.
func NewSlogAPI(logger *slog.Logger) SlogAPI {
	return SlogAPI{logger: logger}
}

func (s SlogAPI) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// attrs turns params into positional attributes, errors are flattened to their message so
// handlers do not print them as empty structs.
func attrs(id string, params []any) []any {
	out := make([]any, 0, len(params)+1)
	if id != "" {
		out = append(out, slog.String("id", id))
	}
	for i, p := range params {
		key := fmt.Sprintf("p%d", i)
		if err, ok := p.(error); ok {
			out = append(out, slog.String(key, err.Error()))
			continue
		}
		out = append(out, slog.Any(key, p))
	}
	return out
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.log().Error("component broken", attrs(id, params)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.log().Warn("component warning", attrs(id, params)...)
}

func (s SlogAPI) ReportDebug(msg string, params ...any) {
	s.log().Debug(msg, attrs("", params)...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.log().Info("count", slog.String("id", id), slog.Int64("n", count))
}
