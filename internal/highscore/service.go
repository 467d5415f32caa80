// Package highscore records per-game high scores and keeps their ranking
// current. Ranking changes are reported to a listener after commit.
package highscore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

type Service struct {
	store    domain.Store
	listener domain.HighScoreListener
	clock    clockwork.Clock
	// rankings at or below this bound are reported as impacted
	impactBound int
}

func NewService(store domain.Store, listener domain.HighScoreListener, clock clockwork.Clock, settings domain.Settings) *Service {
	return &Service{
		store:       store,
		listener:    listener,
		clock:       clock,
		impactBound: len(settings.TournamentPoints) + 1,
	}
}

func loadEntry(ctx context.Context, tx domain.Tx, entryID int64) (*domain.Entry, error) {
	return fetchEntry(ctx, entryID, tx.Entries().GetByID)
}

// lockEntry loads the entry with its row locked. Every write to an entry's
// scores holds this lock, so re-ranks of one entry run one at a time.
func lockEntry(ctx context.Context, tx domain.Tx, entryID int64) (*domain.Entry, error) {
	return fetchEntry(ctx, entryID, tx.Entries().GetForUpdate)
}

func fetchEntry(ctx context.Context, entryID int64, get func(context.Context, int64) (*domain.Entry, error)) (*domain.Entry, error) {
	entry, err := get(ctx, entryID)
	if errors.Is(err, domain.ErrEntryNotFound) {
		return nil, apperrors.ValidationError("unknown entry").WithField("entry_id", entryID).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %d: %w", entryID, err)
	}
	return entry, nil
}

// Submit stores the user's score on the entry, replacing an earlier one.
func (s *Service) Submit(ctx context.Context, entryID, userID int64, raw string) (*domain.HighScore, error) {
	var saved *domain.HighScore
	var impacted []int64
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		entry, err := lockEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		value, err := ParseScore(entry.HighScoreType, raw)
		if err != nil {
			return err
		}

		hs, err := tx.HighScores().GetByUser(ctx, entryID, userID)
		if err != nil {
			return fmt.Errorf("failed to load high score: %w", err)
		}
		if hs == nil {
			hs = &domain.HighScore{EntryID: entryID, UserID: userID, Active: true}
		}
		hs.Score = value
		hs.SubmittedAt = s.clock.Now()
		if err := tx.HighScores().Save(ctx, hs); err != nil {
			return fmt.Errorf("failed to save high score: %w", err)
		}

		impacted, err = s.rerank(ctx, tx, entry)
		if err != nil {
			return err
		}
		saved, err = tx.HighScores().GetByID(ctx, hs.ID)
		if err != nil {
			return fmt.Errorf("failed to reload high score: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, entryID, userID, impacted)
	return saved, nil
}

// Delete removes the user's score from the entry.
func (s *Service) Delete(ctx context.Context, entryID, userID int64) error {
	var impacted []int64
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		entry, err := lockEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		hs, err := tx.HighScores().GetByUser(ctx, entryID, userID)
		if err != nil {
			return fmt.Errorf("failed to load high score: %w", err)
		}
		if hs == nil {
			return apperrors.NotFoundError("no high score for user").
				WithField("entry_id", entryID).WithField("user_id", userID).WithCause(domain.ErrHighScoreNotFound)
		}
		if err := tx.HighScores().Delete(ctx, hs.ID); err != nil {
			return fmt.Errorf("failed to delete high score: %w", err)
		}
		impacted, err = s.rerank(ctx, tx, entry)
		return err
	})
	if err != nil {
		return err
	}
	s.notify(ctx, entryID, userID, impacted)
	return nil
}

// SetActive suspends or reinstates a score. Suspended scores stay stored but
// lose their ranking.
func (s *Service) SetActive(ctx context.Context, scoreID int64, active bool) error {
	var hs *domain.HighScore
	var impacted []int64
	err := s.store.InTx(ctx, func(tx domain.Tx) error {
		var err error
		hs, err = tx.HighScores().GetByID(ctx, scoreID)
		if errors.Is(err, domain.ErrHighScoreNotFound) {
			return apperrors.NotFoundError("unknown high score").WithField("score_id", scoreID).WithCause(err)
		}
		if err != nil {
			return fmt.Errorf("failed to load high score %d: %w", scoreID, err)
		}
		entry, err := lockEntry(ctx, tx, hs.EntryID)
		if err != nil {
			return err
		}
		// Read again under the entry lock; a concurrent writer may have
		// changed or removed the score meanwhile.
		hs, err = tx.HighScores().GetByID(ctx, scoreID)
		if errors.Is(err, domain.ErrHighScoreNotFound) {
			return apperrors.NotFoundError("unknown high score").WithField("score_id", scoreID).WithCause(err)
		}
		if err != nil {
			return fmt.Errorf("failed to reload high score %d: %w", scoreID, err)
		}
		if hs.Active == active {
			return nil
		}
		hs.Active = active
		if err := tx.HighScores().Save(ctx, hs); err != nil {
			return fmt.Errorf("failed to save high score: %w", err)
		}
		impacted, err = s.rerank(ctx, tx, entry)
		return err
	})
	if err != nil {
		return err
	}
	if impacted != nil {
		s.notify(ctx, hs.EntryID, hs.UserID, impacted)
	}
	return nil
}

// Ranking lists the entry's scores, ranked ones first in ranking order.
func (s *Service) Ranking(ctx context.Context, entryID int64) ([]*domain.HighScore, error) {
	var out []*domain.HighScore
	err := s.store.View(ctx, func(tx domain.Tx) error {
		if _, err := loadEntry(ctx, tx, entryID); err != nil {
			return err
		}
		var err error
		out, err = tx.HighScores().ListByEntry(ctx, entryID)
		if err != nil {
			return fmt.Errorf("failed to list high scores: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b *domain.HighScore) int {
		return cmp.Compare(rankOrMax(a.Ranking), rankOrMax(b.Ranking))
	})
	return out, nil
}

func rankOrMax(r *int) int {
	if r == nil {
		return math.MaxInt
	}
	return *r
}

// rerank assigns strict rankings to the entry's active scores: better score
// first, earlier submission on ties. It returns the users whose ranking moved
// while either the old or the new ranking lies within the impact bound.
func (s *Service) rerank(ctx context.Context, tx domain.Tx, entry *domain.Entry) ([]int64, error) {
	scores, err := tx.HighScores().ListByEntry(ctx, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list high scores: %w", err)
	}

	var active []*domain.HighScore
	for _, hs := range scores {
		if hs.Active {
			active = append(active, hs)
		}
	}
	lower := entry.HighScoreType.LowerIsBetter()
	slices.SortFunc(active, func(a, b *domain.HighScore) int {
		c := cmp.Compare(b.Score, a.Score)
		if lower {
			c = -c
		}
		if c != 0 {
			return c
		}
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	next := make(map[int64]*int, len(active))
	for i, hs := range active {
		rank := i + 1
		next[hs.ID] = &rank
	}

	impacted := []int64{}
	for _, hs := range scores {
		rank := next[hs.ID]
		if sameRank(hs.Ranking, rank) {
			continue
		}
		if withinBound(hs.Ranking, s.impactBound) || withinBound(rank, s.impactBound) {
			impacted = append(impacted, hs.UserID)
		}
		hs.Ranking = rank
		if err := tx.HighScores().SetRanking(ctx, hs.ID, rank); err != nil {
			return nil, fmt.Errorf("failed to save high score ranking: %w", err)
		}
	}
	return impacted, nil
}

func sameRank(a, b *int) bool {
	return (a == nil && b == nil) || (a != nil && b != nil && *a == *b)
}

func withinBound(r *int, bound int) bool {
	return r != nil && *r <= bound
}

func (s *Service) notify(ctx context.Context, entryID, userID int64, impacted []int64) {
	if s.listener == nil {
		return
	}
	others := make([]int64, 0, len(impacted))
	for _, id := range impacted {
		if id != userID {
			others = append(others, id)
		}
	}
	slog.DebugContext(ctx, "High score ranking changed", "entry_id", entryID, "user_id", userID, "impacted", len(others))
	s.listener.OnHighScoreRankingChanged(ctx, domain.HighScoreRankingChange{
		EntryID:         entryID,
		UserID:          userID,
		ImpactedUserIDs: others,
	})
}
