package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/jamscore/internal/adapter/httpserver"
	"github.com/pscheid92/jamscore/internal/adapter/memory"
	"github.com/pscheid92/jamscore/internal/adapter/metrics"
	"github.com/pscheid92/jamscore/internal/adapter/postgres"
	"github.com/pscheid92/jamscore/internal/adapter/redis"
	"github.com/pscheid92/jamscore/internal/app"
	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/highscore"
	"github.com/pscheid92/jamscore/internal/platform/config"
	"github.com/pscheid92/jamscore/internal/platform/logging"
	"github.com/pscheid92/jamscore/internal/platform/version"
	"github.com/pscheid92/jamscore/internal/rating"
	"github.com/pscheid92/jamscore/internal/theme"
	"github.com/pscheid92/jamscore/internal/tournament"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	leaseName       = "timed-elimination"
)

type backends struct {
	store        domain.Store
	cache        domain.Cache
	throttle     domain.Throttle
	lease        domain.Lease
	healthChecks []httpserver.HealthCheck
	close        func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not initialized yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupBackends connects PostgreSQL and Redis when configured and falls back
// to the in-process adapters otherwise.
func setupBackends(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) (*backends, error) {
	b := &backends{close: func() {}}

	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, scores are kept in memory only")
		b.store = memory.NewStore(clock)
	} else {
		storeMetrics := metrics.NewStoreMetrics(reg)
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, storeMetrics)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		b.store = postgres.NewStore(pool, clock, storeMetrics)
		b.healthChecks = append(b.healthChecks, httpserver.HealthCheck{Name: "postgres", Check: pool.Ping})
		b.close = pool.Close
	}

	cacheMetrics := metrics.NewCacheMetrics(reg)
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, using in-process cache and throttle")
		b.cache = memory.NewCache(clock)
		b.throttle = memory.NewThrottle(clock)
		return b, nil
	}

	rdb, err := redis.NewClient(ctx, cfg.RedisURL, metrics.NewRedisMetrics(reg))
	if err != nil {
		b.close()
		return nil, err
	}
	b.cache = redis.NewCache(rdb, cacheMetrics)
	b.throttle = redis.NewThrottle(rdb)
	b.lease = redis.NewLease(rdb, leaseName, uuid.NewString(), cfg.LeaseTTL)
	b.healthChecks = append(b.healthChecks, httpserver.HealthCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	closeStore := b.close
	b.close = func() {
		closeRedis(rdb)
		closeStore()
	}
	return b, nil
}

func closeRedis(rdb *goredis.Client) {
	if err := rdb.Close(); err != nil {
		slog.Error("Failed to close Redis client", "error", err)
	}
}

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	reg := metrics.NewRegistry()

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	b, err := setupBackends(startCtx, cfg, reg, clock)
	cancelStart()
	if err != nil {
		slog.Error("Failed to set up backends", "error", err)
		os.Exit(1)
	}
	defer b.close()

	settings := cfg.Settings()
	recorder := metrics.NewScoringMetrics(reg)
	worker := app.NewWorker(cfg.WorkerQueueSize, cfg.WorkerCount, metrics.NewWorkerMetrics(reg), clock)

	themes := theme.NewEngine(b.store, worker, b.throttle, clock, settings, recorder)
	ratings := rating.NewEngine(b.store, worker, b.cache, clock, settings, recorder, cfg.CacheTTL)
	tournaments := tournament.NewEngine(b.store, worker, b.cache, clock, settings, recorder, cfg.CacheTTL)
	highScores := highscore.NewService(b.store, tournaments, clock, settings)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker.Start(ctx, app.Handlers{
		KarmaRefresh: func(ctx context.Context, t domain.KarmaRefresh) error {
			_, err := ratings.RefreshKarma(ctx, t.EntryID)
			return err
		},
		TournamentRefresh: tournaments.HandleRefresh,
		ThemeStatsRefresh: func(ctx context.Context, t domain.ThemeStatsRefresh) error {
			return themes.RefreshStats(ctx, t.EventID)
		},
	})

	ticker := app.NewEliminationTicker(b.store, themes, b.lease, clock, cfg.EliminationTick)
	tickerDone := make(chan struct{})
	go func() {
		defer close(tickerDone)
		ticker.Run(ctx)
	}()

	srv := httpserver.NewServer(httpserver.Queries{
		Themes:      themes,
		Rankings:    ratings,
		Leaderboard: tournaments,
		HighScores:  highScores,
	}, httpserver.Options{
		Port:           cfg.Port,
		Metrics:        metrics.NewHTTPMetrics(reg),
		MetricsHandler: metrics.Handler(reg),
		HealthChecks:   b.healthChecks,
		RateLimit:      cfg.QueryRateLimit,
		RateBurst:      cfg.QueryRateBurst,
		Clock:          clock,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, cleaning up...")
	case err := <-serverErr:
		if err != nil {
			slog.Error("Server error", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}

	<-tickerDone
	worker.Stop()
	slog.Info("Shutdown complete")
}
