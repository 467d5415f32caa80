package theme

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/pscheid92/jamscore/internal/domain"
)

// RefreshStats recounts the event's theme statistics.
func (e *Engine) RefreshStats(ctx context.Context, eventID int64) error {
	start := e.clock.Now()
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		if _, err := loadEvent(ctx, tx, eventID, false); err != nil {
			return err
		}

		themes, err := tx.Themes().ListByStatus(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list themes: %w", err)
		}
		counts, err := tx.Themes().CountByStatus(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to count themes: %w", err)
		}
		votes, voters, err := tx.Themes().VoteTotals(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to count votes: %w", err)
		}

		submitters := make(map[int64]struct{})
		for _, t := range themes {
			submitters[t.SubmitterID] = struct{}{}
		}

		stats := domain.ThemeStats{
			Ideas:       len(themes),
			Submitters:  len(submitters),
			ByStatus:    counts,
			Votes:       votes,
			Voters:      voters,
			RefreshedAt: e.clock.Now(),
		}
		if err := tx.Events().SaveThemeStats(ctx, eventID, stats); err != nil {
			return fmt.Errorf("failed to save theme stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.recorder.ObservePass("theme_stats", e.clock.Since(start), 1)
	return nil
}

// Shortlist returns the shortlisted ideas, best ranked first.
func (e *Engine) Shortlist(ctx context.Context, eventID int64) ([]*domain.ThemeIdea, error) {
	var themes []*domain.ThemeIdea
	err := e.store.View(ctx, func(tx domain.Tx) error {
		if _, err := loadEvent(ctx, tx, eventID, false); err != nil {
			return err
		}
		var err error
		themes, err = tx.Themes().ListByStatus(ctx, eventID, domain.ThemeShortlist)
		if err != nil {
			return fmt.Errorf("failed to list shortlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(themes, func(a, b *domain.ThemeIdea) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			cmp.Compare(b.RatingShortlist, a.RatingShortlist),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return themes, nil
}

func (e *Engine) VoteHistory(ctx context.Context, eventID, userID int64) ([]domain.ThemeVoteRecord, error) {
	var history []domain.ThemeVoteRecord
	err := e.store.View(ctx, func(tx domain.Tx) error {
		var err error
		history, err = tx.Themes().ListVoteHistory(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("failed to list vote history: %w", err)
		}
		return nil
	})
	return history, err
}
