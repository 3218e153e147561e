package telemetry_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"dlstracker-backend/internal/components/telemetry"
	"dlstracker-backend/internal/components/telemetry/telemetrytest"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &telemetrytest.Recorder{}
	outer := telemetry.NewScopedAPI("api", telemetry.NewScopedAPI("tickets", rec))

	outer.ReportBroken("store.create", "boom")
	outer.ReportCount("store.active", 3)

	broken := rec.Reports(telemetrytest.KindBroken)
	require.Len(t, broken, 1)
	require.Equal(t, "tickets: api: store.create", broken[0].ID)
	require.Equal(t, []any{"boom"}, broken[0].Params)

	counts := rec.Reports(telemetrytest.KindCount)
	require.Len(t, counts, 1)
	require.Equal(t, int64(3), counts[0].Count)
	require.True(t, rec.Has(telemetrytest.KindCount, "store.active"))
}

func TestTee(t *testing.T) {
	first := &telemetrytest.Recorder{}
	second := &telemetrytest.Recorder{}
	tee := telemetry.Tee{first, second}

	tee.ReportWarning("cache.scrape", "slow")
	tee.ReportDebug("hello")
	for _, rec := range []*telemetrytest.Recorder{first, second} {
		require.True(t, rec.Has(telemetrytest.KindWarning, "cache.scrape"))
		require.Len(t, rec.Reports(telemetrytest.KindDebug), 1)
	}
}

func TestInstrumentResty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	rec := &telemetrytest.Recorder{}
	client := resty.New().SetBaseURL(server.URL)
	telemetry.InstrumentResty(client, rec)

	_, err := client.R().SetQueryParam("secret", "hunter2").Get("/ok")
	require.NoError(t, err)
	_, err = client.R().Get("/missing")
	require.NoError(t, err)

	warnings := rec.Reports(telemetrytest.KindWarning)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Params, "/missing")
	require.Contains(t, warnings[0].Params, http.StatusNotFound)

	for _, report := range rec.Reports(telemetrytest.KindDebug) {
		for _, p := range report.Params {
			require.NotContains(t, fmt.Sprint(p), "hunter2")
		}
	}

	counts := rec.Reports(telemetrytest.KindCount)
	require.NotEmpty(t, counts)
	require.Equal(t, int64(0), counts[len(counts)-1].Count)
}

func TestScopedAPIWithParams(t *testing.T) {
	rec := &telemetrytest.Recorder{}
	base := telemetry.NewScopedAPI("session", rec)
	first := base.WithParams("a1")
	second := base.WithParams("b2")

	first.ReportWarning("extractor.load", "timeout")
	second.ReportDebug("session state")
	first.ReportCount("extractor.cards", 2)

	warnings := rec.Reports(telemetrytest.KindWarning)
	require.Len(t, warnings, 1)
	require.Equal(t, "session: extractor.load", warnings[0].ID)
	require.Equal(t, []any{"timeout", "a1"}, warnings[0].Params)

	debug := rec.Reports(telemetrytest.KindDebug)
	require.Len(t, debug, 1)
	require.Equal(t, []any{"b2"}, debug[0].Params)

	counts := rec.Reports(telemetrytest.KindCount)
	require.Equal(t, "session: extractor.cards", counts[0].ID)
}
