package theme

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

// VoteActive records an up (+1) or down (-1) vote on an active idea during
// the voting phase. Votes on ideas that are no longer active, or outside the
// voting phase, are ignored.
func (e *Engine) VoteActive(ctx context.Context, userID, eventID, themeID int64, score int) error {
	if score != 1 && score != -1 {
		return apperrors.ValidationError("theme vote must be +1 or -1").WithField("score", score)
	}

	var (
		applied     bool
		triggerPass bool
	)
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		applied, triggerPass = false, false

		ev, err := loadEvent(ctx, tx, eventID, false)
		if err != nil {
			return err
		}
		t, err := loadThemeForUpdate(ctx, tx, eventID, themeID)
		if err != nil {
			return err
		}
		if ev.ThemePhase != domain.ThemePhaseVoting || t.Status != domain.ThemeActive {
			slog.DebugContext(ctx, "Theme vote ignored", "event_id", eventID, "theme_id", themeID,
				"phase", ev.ThemePhase, "status", t.Status)
			return nil
		}

		if err := e.applyVote(ctx, tx, t, userID, score); err != nil {
			return err
		}

		count, err := tx.Events().IncrementThemeVotes(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to increment vote counter: %w", err)
		}
		applied = true
		triggerPass = e.settings.EliminationModulo > 0 && count%int64(e.settings.EliminationModulo) == 0
		return nil
	})
	if err != nil {
		e.recorder.ObserveVote("theme", "error")
		return err
	}
	if !applied {
		e.recorder.ObserveVote("theme", "ignored")
		return nil
	}
	e.recorder.ObserveVote("theme", "applied")

	if triggerPass {
		e.collapseElimination(ctx, eventID)
	}
	e.scheduleStats(ctx, eventID)
	return nil
}

// applyVote upserts the user's vote and adjusts the tally by the delta to any
// previous vote. Only a first vote adds a note. Wilson bounds follow the tally
// while the idea is in open voting.
func (e *Engine) applyVote(ctx context.Context, tx domain.Tx, t *domain.ThemeIdea, userID int64, score int) error {
	prev, err := tx.Themes().GetVote(ctx, userID, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load previous vote: %w", err)
	}

	if prev == nil {
		t.Notes++
		t.Score += score
	} else {
		t.Score += score - prev.Score
	}

	if t.Notes > 0 {
		t.NormalizedScore = float64(t.Score) / float64(t.Notes)
	} else {
		t.NormalizedScore = 0
	}
	if t.Status == domain.ThemeActive {
		t.RatingShortlist, t.RatingElimination = WilsonBounds(float64(t.Notes+t.Score)/2, float64(t.Notes))
	}

	now := e.clock.Now()
	if err := tx.Themes().Update(ctx, t); err != nil {
		return fmt.Errorf("failed to update theme %d: %w", t.ID, err)
	}
	vote := domain.ThemeVote{UserID: userID, ThemeID: t.ID, EventID: t.EventID, Score: score, UpdatedAt: now}
	if err := tx.Themes().UpsertVote(ctx, vote); err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	rec := domain.ThemeVoteRecord{UserID: userID, ThemeID: t.ID, EventID: t.EventID, Score: score, CastAt: now}
	if err := tx.Themes().AppendVoteHistory(ctx, rec); err != nil {
		return fmt.Errorf("failed to append vote history: %w", err)
	}
	return nil
}

// collapseElimination runs one elimination pass per event at a time.
// Concurrent triggers for the same event share the running pass.
func (e *Engine) collapseElimination(ctx context.Context, eventID int64) {
	_, err, _ := e.passes.Do(strconv.FormatInt(eventID, 10), func() (any, error) {
		return e.EliminationPass(ctx, eventID)
	})
	if err != nil {
		slog.ErrorContext(ctx, "Elimination pass failed", "event_id", eventID, "error", err)
	}
}

// EliminationPass moves the weakest eligible ideas to out until only
// ShortlistSize eligible ideas remain. Only ideas whose upper Wilson bound
// is below EliminationThreshold are candidates. It returns the ids removed.
func (e *Engine) EliminationPass(ctx context.Context, eventID int64) ([]int64, error) {
	start := e.clock.Now()
	var removed []int64

	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		removed = nil

		ev, err := loadEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		if ev.ThemePhase != domain.ThemePhaseVoting {
			return nil
		}

		pool, err := tx.Themes().ListByStatusForUpdate(ctx, eventID, domain.ThemeActive)
		if err != nil {
			return fmt.Errorf("failed to list active themes: %w", err)
		}

		var eligible []*domain.ThemeIdea
		for _, t := range pool {
			if t.Notes >= e.settings.EliminationMinNotes {
				eligible = append(eligible, t)
			}
		}
		excess := len(eligible) - e.settings.ShortlistSize
		if excess <= 0 {
			return nil
		}

		var candidates []*domain.ThemeIdea
		for _, t := range eligible {
			if t.RatingElimination < e.settings.EliminationThreshold {
				candidates = append(candidates, t)
			}
		}
		slices.SortFunc(candidates, func(a, b *domain.ThemeIdea) int {
			return cmp.Or(
				cmp.Compare(a.RatingElimination, b.RatingElimination),
				b.CreatedAt.Compare(a.CreatedAt),
				cmp.Compare(b.ID, a.ID),
			)
		})

		for _, t := range candidates[:min(excess, len(candidates))] {
			t.Ranking = percentile(pool, t, byElimination)
			if err := t.SetStatus(domain.ThemeOut); err != nil {
				return err
			}
			if err := tx.Themes().Update(ctx, t); err != nil {
				return fmt.Errorf("failed to eliminate theme %d: %w", t.ID, err)
			}
			removed = append(removed, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recorder.ObservePass("theme_elimination", e.clock.Since(start), len(removed))
	if len(removed) > 0 {
		slog.InfoContext(ctx, "Themes eliminated", "event_id", eventID, "count", len(removed))
	}
	return removed, nil
}
