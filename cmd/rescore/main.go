// Command rescore recomputes derived scores of one event from the stored
// votes: entry ratings and rankings, karma, and the tournament leaderboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jamscore/internal/adapter/memory"
	"github.com/pscheid92/jamscore/internal/adapter/postgres"
	"github.com/pscheid92/jamscore/internal/adapter/redis"
	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/platform/config"
	"github.com/pscheid92/jamscore/internal/platform/logging"
	"github.com/pscheid92/jamscore/internal/rating"
	"github.com/pscheid92/jamscore/internal/tournament"
)

// discardQueue drops follow-up tasks; rescore runs every pass itself.
type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, domain.Task) bool { return false }

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "PostgreSQL URL (or set DATABASE_URL env)")
		redisURL    = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL for cache invalidation (optional)")
		eventID     = flag.Int64("event", 0, "Event id to rescore")
		ratings     = flag.Bool("ratings", true, "Recompute entry ratings and category rankings")
		karma       = flag.Bool("karma", true, "Recompute entry karma")
		tourney     = flag.Bool("tournament", true, "Recompute the tournament leaderboard")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}
	if *eventID < 1 {
		log.Fatal("Event id required (--event)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text", "")

	ctx := context.Background()
	clock := clockwork.NewRealClock()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	slog.Info("Connected to database", "url", redact(*databaseURL))

	var cache domain.Cache = memory.NewCache(clock)
	if *redisURL != "" {
		rdb, err := redis.NewClient(ctx, *redisURL, nil)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
		cache = redis.NewCache(rdb, nil)
		slog.Info("Connected to Redis", "url", redact(*redisURL))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load scoring settings: %v", err)
	}
	settings := cfg.Settings()

	store := postgres.NewStore(pool, clock, nil)
	r := rescorer{
		store:       store,
		ratings:     rating.NewEngine(store, discardQueue{}, cache, clock, settings, domain.NopRecorder{}, time.Minute),
		tournaments: tournament.NewEngine(store, discardQueue{}, cache, clock, settings, domain.NopRecorder{}, time.Minute),
	}

	start := time.Now()
	if err := r.run(ctx, *eventID, *ratings, *karma, *tourney); err != nil {
		log.Fatalf("Rescore failed: %v", err)
	}
	slog.Info("Rescore complete", "event_id", *eventID, "duration_ms", time.Since(start).Milliseconds())
}

type rescorer struct {
	store       domain.Store
	ratings     *rating.Engine
	tournaments *tournament.Engine
}

func (r rescorer) run(ctx context.Context, eventID int64, ratings, karma, tourney bool) error {
	var entryIDs []int64
	err := r.store.View(ctx, func(tx domain.Tx) error {
		entries, err := tx.Entries().ListByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			entryIDs = append(entryIDs, e.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	slog.Info("Rescoring event", "event_id", eventID, "entries", len(entryIDs))

	if ratings {
		for _, id := range entryIDs {
			if err := r.ratings.RefreshEntryRatings(ctx, id); err != nil {
				return fmt.Errorf("failed to refresh ratings of entry %d: %w", id, err)
			}
		}
		if err := r.ratings.ComputeRankings(ctx, eventID); err != nil {
			return fmt.Errorf("failed to compute rankings: %w", err)
		}
	}

	if karma {
		total := 0
		for _, id := range entryIDs {
			k, err := r.ratings.RefreshKarma(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to refresh karma of entry %d: %w", id, err)
			}
			total += k
			slog.Debug("Refreshed karma", "entry_id", id, "karma", k)
		}
		slog.Info("Karma refreshed", "entries", len(entryIDs), "total", total)
	}

	if tourney {
		if err := r.tournaments.RecalculateAll(ctx, eventID); err != nil {
			return fmt.Errorf("failed to recalculate tournament: %w", err)
		}
	}
	return nil
}

// redact hides credentials for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid url"
	}
	return u.Redacted()
}
