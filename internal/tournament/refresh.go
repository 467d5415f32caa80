package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pscheid92/jamscore/internal/domain"
)

var _ domain.HighScoreListener = (*Engine)(nil)

// OnHighScoreRankingChanged schedules a refresh of the affected users in every
// playing tournament that lists the entry.
func (e *Engine) OnHighScoreRankingChanged(ctx context.Context, change domain.HighScoreRankingChange) {
	users := []int64{change.UserID}
	for _, id := range change.ImpactedUserIDs {
		if id != change.UserID && !slices.Contains(users, id) {
			users = append(users, id)
		}
	}
	if limit := len(e.points) + 2; len(users) > limit {
		users = users[:limit]
	}

	var eventIDs []int64
	err := e.store.View(ctx, func(tx domain.Tx) error {
		ids, err := tx.Tournaments().ListEventIDsByEntry(ctx, change.EntryID)
		if err != nil {
			return fmt.Errorf("failed to list tournaments of entry %d: %w", change.EntryID, err)
		}
		for _, id := range ids {
			ev, err := tx.Events().GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load event %d: %w", id, err)
			}
			if ev.TournamentPhase == domain.TournamentPhasePlaying {
				eventIDs = append(eventIDs, id)
			}
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to resolve tournaments for high score change", "entry_id", change.EntryID, "error", err)
		return
	}

	for _, id := range eventIDs {
		task := domain.TournamentRefresh{EventID: id, UserIDs: slices.Clone(users)}
		if !e.tasks.Enqueue(ctx, task) {
			slog.WarnContext(ctx, "Tournament refresh dropped", "event_id", id, "entry_id", change.EntryID)
		}
	}
}

// HandleRefresh runs a queued tournament refresh. A task without users
// recalculates the whole tournament.
func (e *Engine) HandleRefresh(ctx context.Context, task domain.TournamentRefresh) error {
	if len(task.UserIDs) == 0 {
		return e.RecalculateAll(ctx, task.EventID)
	}

	start := e.clock.Now()
	changed := 0
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		changed = 0
		sc, err := e.loadScope(ctx, tx, task.EventID)
		if err != nil {
			return err
		}
		if sc.ev.TournamentPhase != domain.TournamentPhasePlaying {
			slog.DebugContext(ctx, "Tournament not playing, refresh skipped", "event_id", task.EventID, "phase", sc.ev.TournamentPhase)
			return nil
		}

		dirty := false
		for _, userID := range task.UserIDs {
			ok, err := e.refreshUser(ctx, tx, sc, userID)
			if err != nil {
				return err
			}
			dirty = dirty || ok
		}
		if !dirty {
			return nil
		}
		changed, err = e.refreshRankings(ctx, tx, sc)
		if err != nil {
			return err
		}
		// Score rows can change without any position moving.
		changed = max(changed, 1)
		return nil
	})
	if err != nil {
		return err
	}
	e.recorder.ObservePass("tournament_refresh", e.clock.Since(start), changed)
	if changed > 0 {
		e.invalidate(ctx, task.EventID)
	}
	return nil
}
