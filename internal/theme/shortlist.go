package theme

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

// ChangeThemePhase moves the event's theme workflow to next. Entering the
// shortlist phase from voting computes the shortlist, clears the promoted
// ideas' tallies for the ranked round and arms the elimination countdown.
func (e *Engine) ChangeThemePhase(ctx context.Context, eventID int64, next domain.ThemePhase) error {
	return e.store.InTx(ctx, func(tx domain.Tx) error {
		ev, err := loadEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		prev := ev.ThemePhase
		if err := ev.SetThemePhase(next); err != nil {
			return apperrors.ConflictError("theme phase change not allowed").
				WithField("from", prev).WithField("to", next).WithCause(err)
		}

		switch {
		case prev == domain.ThemePhaseIdeas && next == domain.ThemePhaseVoting:
			counts, err := tx.Themes().CountByStatus(ctx, eventID)
			if err != nil {
				return fmt.Errorf("failed to count themes: %w", err)
			}
			if counts[domain.ThemeActive] < e.settings.ThemeIdeasRequired {
				return apperrors.ValidationError("not enough theme ideas to start voting").
					WithField("active", counts[domain.ThemeActive]).
					WithField("required", e.settings.ThemeIdeasRequired)
			}
		case prev == domain.ThemePhaseVoting && next == domain.ThemePhaseShortlist:
			shortlist, err := e.computeShortlist(ctx, tx, eventID)
			if err != nil {
				return err
			}
			for _, t := range shortlist {
				t.ResetTally()
				if err := tx.Themes().Update(ctx, t); err != nil {
					return fmt.Errorf("failed to reset theme %d: %w", t.ID, err)
				}
				if err := tx.Themes().DeleteVotes(ctx, t.ID); err != nil {
					return fmt.Errorf("failed to reset votes of theme %d: %w", t.ID, err)
				}
			}
			if sl := &ev.ShortlistElimination; sl.Enabled && sl.Interval > 0 {
				sl.NextAt = e.clock.Now().Add(sl.Interval)
				sl.Eliminated = 0
			}
		}

		if err := tx.Events().Save(ctx, ev); err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
		slog.InfoContext(ctx, "Theme phase changed", "event_id", eventID, "from", prev, "to", next)
		return nil
	})
}

// ComputeShortlist recomputes the shortlist from the current lower Wilson
// bounds. Running it again without new votes yields the same shortlist.
func (e *Engine) ComputeShortlist(ctx context.Context, eventID int64) ([]*domain.ThemeIdea, error) {
	start := e.clock.Now()
	var shortlist []*domain.ThemeIdea
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		if _, err := loadEvent(ctx, tx, eventID, true); err != nil {
			return err
		}
		var err error
		shortlist, err = e.computeShortlist(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.recorder.ObservePass("theme_shortlist", e.clock.Since(start), len(shortlist))
	return shortlist, nil
}

func (e *Engine) computeShortlist(ctx context.Context, tx domain.Tx, eventID int64) ([]*domain.ThemeIdea, error) {
	pool, err := tx.Themes().ListByStatusForUpdate(ctx, eventID, domain.ThemeActive, domain.ThemeOut, domain.ThemeShortlist)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}

	for _, t := range pool {
		t.Ranking = percentile(pool, t, byShortlist)
		if err := t.SetStatus(domain.ThemeOut); err != nil {
			return nil, err
		}
	}

	var eligible []*domain.ThemeIdea
	for _, t := range pool {
		if t.Notes >= e.settings.EliminationMinNotes {
			eligible = append(eligible, t)
		}
	}
	slices.SortFunc(eligible, func(a, b *domain.ThemeIdea) int {
		return cmp.Or(
			cmp.Compare(b.RatingShortlist, a.RatingShortlist),
			cmp.Compare(b.Notes, a.Notes),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})

	shortlist := eligible[:min(e.settings.ShortlistSize, len(eligible))]
	for _, t := range shortlist {
		if err := t.SetStatus(domain.ThemeShortlist); err != nil {
			return nil, err
		}
	}

	for _, t := range pool {
		if err := tx.Themes().Update(ctx, t); err != nil {
			return nil, fmt.Errorf("failed to update theme %d: %w", t.ID, err)
		}
	}
	return shortlist, nil
}

// SaveShortlistVotes stores the user's ranked preference. The first theme
// gets ShortlistSize points, the next one less, and so on. The whole batch is
// applied or rejected together; themes that left the shortlist are skipped.
func (e *Engine) SaveShortlistVotes(ctx context.Context, userID, eventID int64, orderedThemeIDs []int64) error {
	size := e.settings.ShortlistSize
	if len(orderedThemeIDs) > size {
		return apperrors.ValidationError(fmt.Sprintf("at most %d shortlist votes allowed", size)).
			WithField("submitted", len(orderedThemeIDs))
	}
	seen := make(map[int64]struct{}, len(orderedThemeIDs))
	for _, id := range orderedThemeIDs {
		if _, dup := seen[id]; dup {
			return apperrors.ValidationError("theme listed twice").WithField("theme_id", id)
		}
		seen[id] = struct{}{}
	}

	applied := false
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		applied = false

		ev, err := loadEvent(ctx, tx, eventID, false)
		if err != nil {
			return err
		}
		if ev.ThemePhase != domain.ThemePhaseShortlist {
			slog.DebugContext(ctx, "Shortlist vote outside of phase", "event_id", eventID, "phase", ev.ThemePhase)
			return nil
		}

		// Lock rows in id order so concurrent ballots cannot deadlock.
		locked := make(map[int64]*domain.ThemeIdea, len(orderedThemeIDs))
		for _, id := range slices.Sorted(maps.Keys(seen)) {
			t, err := loadThemeForUpdate(ctx, tx, eventID, id)
			if err != nil {
				return err
			}
			locked[id] = t
		}

		for pos, id := range orderedThemeIDs {
			t := locked[id]
			if t.Status != domain.ThemeShortlist {
				continue
			}
			if err := e.applyVote(ctx, tx, t, userID, size-pos); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		e.recorder.ObserveVote("shortlist", "error")
		return err
	}
	if applied {
		e.recorder.ObserveVote("shortlist", "applied")
	} else {
		e.recorder.ObserveVote("shortlist", "ignored")
	}
	return nil
}

// RunTimedElimination removes overdue shortlist themes one interval at a
// time. The countdown stops for good once MaxTimedEliminations themes are
// gone or only MinRemainingThemes are left. It returns the ids removed.
func (e *Engine) RunTimedElimination(ctx context.Context, eventID int64) ([]int64, error) {
	var removed []int64
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		removed = nil

		ev, err := loadEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		sl := &ev.ShortlistElimination
		if ev.ThemePhase != domain.ThemePhaseShortlist || !sl.Due(now) {
			return nil
		}

		remaining, err := tx.Themes().ListByStatusForUpdate(ctx, eventID, domain.ThemeShortlist)
		if err != nil {
			return fmt.Errorf("failed to list shortlist: %w", err)
		}
		floor := e.settings.MinRemainingThemes

		for sl.Due(now) && sl.Eliminated < e.settings.MaxTimedEliminations() && len(remaining) > floor {
			idx := lowestShortlistTheme(remaining)
			t := remaining[idx]
			t.Ranking = shortlistPercentile(remaining, t)
			if err := t.SetStatus(domain.ThemeOut); err != nil {
				return err
			}
			if err := tx.Themes().Update(ctx, t); err != nil {
				return fmt.Errorf("failed to eliminate theme %d: %w", t.ID, err)
			}
			remaining = slices.Delete(remaining, idx, idx+1)
			removed = append(removed, t.ID)

			sl.NextAt = sl.NextAt.Add(sl.Interval)
			sl.Eliminated++
		}

		if sl.Eliminated >= e.settings.MaxTimedEliminations() || len(remaining) <= floor {
			sl.NextAt = time.Time{}
		}
		if err := tx.Events().Save(ctx, ev); err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		slog.InfoContext(ctx, "Shortlist themes eliminated", "event_id", eventID, "count", len(removed))
	}
	return removed, nil
}

// lowestShortlistTheme picks the theme with the fewest ranked points, then the
// lowest lower bound from open voting, preferring the newest idea on ties.
func lowestShortlistTheme(themes []*domain.ThemeIdea) int {
	lowest := 0
	for i, t := range themes[1:] {
		l := themes[lowest]
		if cmp.Or(
			cmp.Compare(t.Score, l.Score),
			cmp.Compare(t.RatingShortlist, l.RatingShortlist),
			cmp.Compare(l.ID, t.ID),
		) < 0 {
			lowest = i + 1
		}
	}
	return lowest
}

func shortlistPercentile(pool []*domain.ThemeIdea, t *domain.ThemeIdea) *float64 {
	return percentile(pool, t, func(p *domain.ThemeIdea) float64 { return float64(p.Score) })
}
