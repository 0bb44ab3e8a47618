package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ringwire/streamserver/metric"
	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	r, err := ring.New(8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	s := NewServer(registry.New(), r, metric.NewMetricsRegistry(), Config{})
	ts := httptest.NewServer(s.mux())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthzReportsOK(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusReturnsRingAndRegistryCounts(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot StatusSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.Equal(t, 0, snapshot.ServerUnitCount)
	require.Equal(t, 0, snapshot.ClientUnitCount)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReloadRejectsInvalidPayload(t *testing.T) {
	r, err := ring.New(8)
	require.NoError(t, err)
	defer r.Close()

	s := NewServer(registry.New(), r, metric.NewMetricsRegistry(), Config{})
	s.Reload = func(body []byte) error { return nil }
	ts := httptest.NewServer(s.mux())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/reload", "application/json", bytes.NewBufferString(`{"match": 5}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReloadAcceptsValidPayload(t *testing.T) {
	r, err := ring.New(8)
	require.NoError(t, err)
	defer r.Close()

	var seen []byte
	s := NewServer(registry.New(), r, metric.NewMetricsRegistry(), Config{})
	s.Reload = func(body []byte) error {
		seen = body
		return nil
	}
	ts := httptest.NewServer(s.mux())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/reload", "application/json", bytes.NewBufferString(`{"match": "^GE\\."}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Contains(t, string(seen), "GE")
}

func TestShutdownWithoutStartIsNoop(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Shutdown(context.Background()))
}
