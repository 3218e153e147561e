package telemetry

import (
	"fmt"
)

// API is how components report their health. Components never log directly, so tests can assert
// on what gets reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that failed in a way someone should look at.
	//
	// `id` names the component and method that broke, ex. `extractor.extract-goals`, not the line
	// that failed. Details go in params or in a wrapped error.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) underscores inside component names (`auth_provider`)
	// 3) dashes inside method names (`extract-goals`)
	//
	// Packages scope their reports with ScopedAPI, so an id only needs `<struct>.<method>`.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unusual that is not necessarily a failure, ex. a goal entry
	// that could not be parsed. `id` follows the ReportBroken rules.
	ReportWarning(id string, params ...any)

	// ReportDebug reports information that is only useful while developing.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current value of something, ex. the number of active scrapes. Values
	// are samples over time and should not be summed. `id` follows the ReportBroken rules.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, ex. "cache: cache.scrape".
//
// The namespace must be fixed. Instance values such as a session id go in WithParams, since ids
// end up as metric attributes.
type ScopedAPI struct {
	namespace string
	params    []any
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

// WithParams returns a copy of s that appends params to every broken, warning and debug report.
func (s ScopedAPI) WithParams(params ...any) ScopedAPI {
	extra := make([]any, 0, len(s.params)+len(params))
	extra = append(extra, s.params...)
	extra = append(extra, params...)
	s.params = extra
	return s
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) with(params []any) []any {
	if len(s.params) == 0 {
		return params
	}
	out := make([]any, 0, len(params)+len(s.params))
	out = append(out, params...)
	return append(out, s.params...)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), s.with(params)...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), s.with(params)...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), s.with(params)...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}

// Tee forwards every report to each of apis in order.
type Tee []API

func (t Tee) ReportBroken(id string, params ...any) {
	for _, api := range t {
		api.ReportBroken(id, params...)
	}
}

func (t Tee) ReportWarning(id string, params ...any) {
	for _, api := range t {
		api.ReportWarning(id, params...)
	}
}

func (t Tee) ReportDebug(msg string, params ...any) {
	for _, api := range t {
		api.ReportDebug(msg, params...)
	}
}

func (t Tee) ReportCount(id string, count int64) {
	for _, api := range t {
		api.ReportCount(id, count)
	}
}
