package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/jamscore/internal/adapter/metrics"
)

func healthOK(context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		checks     []HealthCheck
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "startup ready",
			path:       "/health/startup",
			checks:     []HealthCheck{{Name: "postgres", Check: healthOK}, {Name: "redis", Check: healthOK}},
			wantStatus: http.StatusOK,
			wantBody:   []string{`"status":"ready"`, `"postgres":"ok"`, `"redis":"ok"`},
		},
		{
			name:       "readiness reports first failing check",
			path:       "/health/ready",
			checks:     []HealthCheck{{Name: "postgres", Check: healthErr("database unreachable")}, {Name: "redis", Check: healthErr("refused")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   []string{`"status":"unhealthy"`, `"failed_check":"postgres"`, `"error":"database unreachable"`, `"redis":"failing"`},
		},
		{
			name:       "readiness without checks",
			path:       "/health/ready",
			wantStatus: http.StatusOK,
			wantBody:   []string{`"status":"ready"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeQueries{}, Options{HealthChecks: tt.checks})
			rec := doGet(srv, tt.path)

			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestLiveness_ReportsUptime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	srv := newTestServer(t, &fakeQueries{}, Options{Clock: clock})
	clock.Advance(90 * time.Second)

	rec := doGet(srv, "/health/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","uptime":90}`, rec.Body.String())
}

func TestVersion(t *testing.T) {
	rec := doGet(newTestServer(t, &fakeQueries{}, Options{}), "/version")

	assert.Equal(t, http.StatusOK, rec.Code)
	for _, field := range []string{`"service":"jamscore"`, `"version"`, `"commit"`, `"go_version"`} {
		assert.Contains(t, rec.Body.String(), field)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	srv := newTestServer(t, &fakeQueries{}, Options{Metrics: httpMetrics, MetricsHandler: metrics.Handler(reg)})

	doGet(srv, "/api/v1/events/1/leaderboard")
	rec := doGet(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/events/:event/leaderboard"`)
	assert.NotContains(t, rec.Body.String(), `route="/metrics"`)
}

func TestMetricsEndpoint_AbsentWithoutHandler(t *testing.T) {
	rec := doGet(newTestServer(t, &fakeQueries{}, Options{}), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
