// Package telemetrytest provides a telemetry.API that records reports so tests can assert on them.
package telemetrytest

import (
	"strings"
	"sync"
)

type Kind int

const (
	KindBroken Kind = iota
	KindWarning
	KindDebug
	KindCount
)

type Report struct {
	Kind   Kind
	ID     string
	Params []any
	Count  int64
}

// Recorder implements telemetry.API in memory.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) add(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: KindBroken, ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: KindWarning, ID: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: KindDebug, ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Kind: KindCount, ID: id, Count: count})
}

// Reports returns a copy of every report of the given kind.
func (r *Recorder) Reports(kind Kind) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Kind == kind {
			out = append(out, report)
		}
	}
	return out
}

// Has reports whether a report of kind exists whose id ends with suffix.
func (r *Recorder) Has(kind Kind, suffix string) bool {
	for _, report := range r.Reports(kind) {
		if strings.HasSuffix(report.ID, suffix) {
			return true
		}
	}
	return false
}
