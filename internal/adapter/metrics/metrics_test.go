package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

func TestScoringMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScoringMetrics(reg)

	m.ObserveVote("theme", "applied")
	m.ObserveVote("theme", "applied")
	m.ObserveVote("entry", "ignored")
	m.ObservePass("elimination", 20*time.Millisecond, 3)
	m.ObservePass("elimination", 10*time.Millisecond, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Votes.WithLabelValues("theme", "applied")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Votes.WithLabelValues("entry", "ignored")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.PassChanges.WithLabelValues("elimination")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PassDuration))
}

func TestWorkerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetrics(reg)

	m.ObserveTask("karma_refresh", "ok", time.Millisecond)
	m.ObserveTask("karma_refresh", "dropped", 0)
	m.SetQueueDepth(7)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Tasks.WithLabelValues("karma_refresh", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Tasks.WithLabelValues("karma_refresh", "dropped")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(m.QueueDepth), 0)
}

func TestCacheMetrics_LabelsByCacheName(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCacheMetrics(reg)

	m.Hit("leaderboard:1")
	m.Hit("leaderboard:2")
	m.Miss("rankings:1")
	m.Invalidated("rankings:9")

	assert.InDelta(t, 2, testutil.ToFloat64(m.Hits.WithLabelValues("leaderboard")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Misses.WithLabelValues("rankings")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Purges.WithLabelValues("rankings")), 0)
	assert.Equal(t, "plain", CacheName("plain"))
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/events/:id/leaderboard", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/events/:id/shortlist", func(echo.Context) error {
		return apperrors.ValidationError("unknown event")
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/events/1/leaderboard", "/events/2/leaderboard", "/events/1/shortlist", "/health/live"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/events/:id/leaderboard", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/events/:id/shortlist", "400")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestsTotal))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(echo.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(apperrors.ConflictError("busy")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestNewRegistry_ServesMetrics(t *testing.T) {
	reg := NewRegistry()
	NewScoringMetrics(reg).ObserveVote("theme", "applied")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `jamscore_votes_total{kind="theme",result="applied"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "jamscore_build_info{")
}
