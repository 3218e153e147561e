package telemetry

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSpanName(t *testing.T) {
	require.Equal(t, "POST /auth/v1/token", spanName(http.MethodPost, "https://x.supabase.co/auth/v1/token?grant_type=password"))
	require.Equal(t, "GET /auth/v1/user", spanName(http.MethodGet, "/auth/v1/user"))
}

func TestHeaderAttributesRedacts(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer secret")
	headers.Set("Apikey", "anon")
	headers.Set("Content-Type", "application/json")
	headers.Add("Accept", "a")
	headers.Add("Accept", "b")

	var attrs []attribute.KeyValue
	headerAttributes(&attrs, "request", headers)

	got := map[string]string{}
	for _, a := range attrs {
		got[string(a.Key)] = a.Value.AsString()
	}
	require.Equal(t, map[string]string{
		"request/header: Content-Type": "application/json",
		"request/header: Accept (0)":   "a",
		"request/header: Accept (1)":   "b",
	}, got)
}
