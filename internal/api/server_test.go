package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sentinelstack/sentinel-heal/internal/config"
	"github.com/sentinelstack/sentinel-heal/internal/services"
)

type stubStatus struct {
	report *services.CycleReport
}

func (s *stubStatus) LastReport() *services.CycleReport { return s.report }

func startServer(t *testing.T, status StatusSource) *Server {
	t.Helper()

	srv, err := NewServer(config.ServerConfig{
		Address:         "127.0.0.1:0",
		GracefulTimeout: time.Second,
	}, status, prometheus.NewRegistry())
	require.NoError(t, err)

	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func get(t *testing.T, srv *Server, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("http://%s%s", srv.Address(), path))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, body
}

func TestHealthzEndpoint(t *testing.T) {
	srv := startServer(t, &stubStatus{})

	resp, body := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	srv := startServer(t, &stubStatus{})

	resp, _ := get(t, srv, "/api/v1/status")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusReturnsLastReport(t *testing.T) {
	report := &services.CycleReport{
		SnapshotID:     "2026-02-01T10:00:00Z",
		TicketsWritten: 3,
	}
	srv := startServer(t, &stubStatus{report: report})

	resp, body := get(t, srv, "/api/v1/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded services.CycleReport
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, "2026-02-01T10:00:00Z", decoded.SnapshotID)
	require.Equal(t, 3, decoded.TicketsWritten)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentinel_heal",
		Name:      "probe_total",
		Help:      "Test counter.",
	})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	srv, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, &stubStatus{}, reg)
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	resp, body := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "sentinel_heal_probe_total 1")
}
