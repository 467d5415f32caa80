// Package httpserver exposes health checks, metrics and read-only scoring
// queries over HTTP. Writes enter through the engines directly.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/jamscore/internal/adapter/metrics"
	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/rating"
	"github.com/pscheid92/jamscore/internal/tournament"
)

type themeQueries interface {
	Shortlist(ctx context.Context, eventID int64) ([]*domain.ThemeIdea, error)
	VoteHistory(ctx context.Context, eventID, userID int64) ([]domain.ThemeVoteRecord, error)
}

type rankingQueries interface {
	Rankings(ctx context.Context, eventID int64, division domain.Division, category int) ([]rating.RankedEntry, error)
}

type leaderboardQueries interface {
	Leaderboard(ctx context.Context, eventID int64) ([]tournament.Standing, error)
}

type highScoreQueries interface {
	Ranking(ctx context.Context, entryID int64) ([]*domain.HighScore, error)
}

// Queries bundles the read side of the engines.
type Queries struct {
	Themes      themeQueries
	Rankings    rankingQueries
	Leaderboard leaderboardQueries
	HighScores  highScoreQueries
}

type Options struct {
	Port           string
	Metrics        *metrics.HTTPMetrics
	MetricsHandler http.Handler
	HealthChecks   []HealthCheck
	// RateLimit is the per-client request rate on query routes; zero disables it.
	RateLimit float64
	RateBurst int
	Clock     clockwork.Clock
}

type Server struct {
	echo    *echo.Echo
	port    string
	queries Queries
	opts    Options

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(queries Queries, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:         e,
		port:         opts.Port,
		queries:      queries,
		opts:         opts,
		healthChecks: opts.HealthChecks,
		clock:        clock,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
