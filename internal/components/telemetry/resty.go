package telemetry

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_status   = "resty.status"
	report_resty_inflight = "resty.inflight"
)

type restyReporter struct {
	tel      API
	ids      atomic.Uint64
	inflight atomic.Int64
}

// InstrumentResty reports every request made by client. Only the method and path are reported,
// query strings and bodies may carry credentials. Responses with a 4xx or 5xx status are reported
// as warnings, transport failures as broken.
func InstrumentResty(client *resty.Client, tel API) {
	r := &restyReporter{tel: tel}
	client.OnBeforeRequest(r.onBeforeRequest)
	client.OnAfterResponse(r.onAfterResponse)
	client.OnError(r.onError)
}

type requestInfoKeyType int

var requestInfoKey requestInfoKeyType

type requestInfo struct {
	id uint64
	// only durations are measured, the wall clock does not matter here
	start    time.Time
	finished atomic.Bool
}

func pathOf(rawUrl string) string {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return "<unparseable url>"
	}
	return parsed.Path
}

func (r *restyReporter) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	info := &requestInfo{id: r.ids.Add(1), start: time.Now()}
	req.SetContext(context.WithValue(req.Context(), requestInfoKey, info))

	r.tel.ReportDebug(report_resty_request, info.id, req.Method, pathOf(req.URL))
	r.tel.ReportCount(report_resty_inflight, r.inflight.Add(1))
	return nil
}

// finish returns how long the request took. ok is false when the request was not started by this
// reporter or was already finished, resty calls OnError after OnAfterResponse when a later
// response middleware fails.
func (r *restyReporter) finish(req *resty.Request) (id uint64, took time.Duration, ok bool) {
	info, found := req.Context().Value(requestInfoKey).(*requestInfo)
	if !found || info.finished.Swap(true) {
		return 0, 0, false
	}
	r.tel.ReportCount(report_resty_inflight, r.inflight.Add(-1))
	return info.id, time.Since(info.start), true
}

func (r *restyReporter) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	id, took, ok := r.finish(res.Request)
	if !ok {
		return nil
	}
	if res.IsError() {
		r.tel.ReportWarning(
			report_resty_status,
			id,
			res.Request.Method,
			pathOf(res.Request.URL),
			res.StatusCode(),
			took.String(),
		)
		return nil
	}
	r.tel.ReportDebug(report_resty_response, id, res.StatusCode(), took.String())
	return nil
}

func (r *restyReporter) onError(req *resty.Request, err error) {
	id, took, ok := r.finish(req)
	if !ok {
		return
	}
	r.tel.ReportBroken(report_resty_request, err, id, req.Method, pathOf(req.URL), took.String())
}
