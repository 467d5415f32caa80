package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/pscheid92/jamscore/internal/domain"
)

const leaderboardKey = "board"

func leaderboardNamespace(eventID int64) string {
	return "leaderboard:" + strconv.FormatInt(eventID, 10)
}

type Standing struct {
	UserID      int64                       `json:"user_id"`
	Ranking     int                         `json:"ranking"`
	Score       int                         `json:"score"`
	EntryScores map[int64]domain.EntryScore `json:"entry_scores"`
}

// Leaderboard lists the ranked users of a tournament, best first. Concurrent
// cache misses for the same event share one store read.
func (e *Engine) Leaderboard(ctx context.Context, eventID int64) ([]Standing, error) {
	ns := leaderboardNamespace(eventID)
	if raw, ok, err := e.cache.Get(ctx, ns, leaderboardKey); err != nil {
		slog.WarnContext(ctx, "Leaderboard cache read failed", "event_id", eventID, "error", err)
	} else if ok {
		var cached []Standing
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	v, err, _ := e.boards.Do(ns, func() (any, error) {
		board, err := e.loadLeaderboard(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(board); err == nil {
			if err := e.cache.Set(ctx, ns, leaderboardKey, raw, e.cacheTTL); err != nil {
				slog.WarnContext(ctx, "Leaderboard cache write failed", "event_id", eventID, "error", err)
			}
		}
		return board, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Standing), nil
}

func (e *Engine) loadLeaderboard(ctx context.Context, eventID int64) ([]Standing, error) {
	board := []Standing{}
	err := e.store.View(ctx, func(tx domain.Tx) error {
		if _, err := loadEvent(ctx, tx, eventID, false); err != nil {
			return err
		}
		scores, err := tx.Tournaments().ListScores(ctx, eventID, true)
		if err != nil {
			return fmt.Errorf("failed to list tournament scores: %w", err)
		}
		for _, s := range scores {
			if s.Ranking == nil {
				continue
			}
			board = append(board, Standing{UserID: s.UserID, Ranking: *s.Ranking, Score: s.Score, EntryScores: s.EntryScores})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(board, func(a, b Standing) int { return a.Ranking - b.Ranking })
	return board, nil
}

func (e *Engine) invalidate(ctx context.Context, eventID int64) {
	if err := e.cache.Delete(ctx, leaderboardNamespace(eventID), leaderboardKey); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate leaderboard cache", "event_id", eventID, "error", err)
	}
}
