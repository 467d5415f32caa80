// Package tournament converts per-game high-score placements into points
// and keeps a strictly ordered leaderboard for every tournament.
package tournament

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

type Engine struct {
	store    domain.Store
	tasks    domain.TaskQueue
	cache    domain.Cache
	clock    clockwork.Clock
	points   []int
	recorder domain.Recorder
	cacheTTL time.Duration
	boards   singleflight.Group
}

func NewEngine(store domain.Store, tasks domain.TaskQueue, cache domain.Cache, clock clockwork.Clock, settings domain.Settings, recorder domain.Recorder, cacheTTL time.Duration) *Engine {
	if recorder == nil {
		recorder = domain.NopRecorder{}
	}
	return &Engine{
		store:    store,
		tasks:    tasks,
		cache:    cache,
		clock:    clock,
		points:   slices.Clone(settings.TournamentPoints),
		recorder: recorder,
		cacheTTL: cacheTTL,
	}
}

func loadEvent(ctx context.Context, tx domain.Tx, eventID int64, forUpdate bool) (*domain.Event, error) {
	get := tx.Events().GetByID
	if forUpdate {
		get = tx.Events().GetForUpdate
	}
	ev, err := get(ctx, eventID)
	if errors.Is(err, domain.ErrEventNotFound) {
		return nil, apperrors.ValidationError("unknown event").WithField("event_id", eventID).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	return ev, nil
}

// scope is what every per-user refresh of one tournament needs.
type scope struct {
	ev       *domain.Event
	entries  []domain.TournamentEntry
	entryIDs []int64
	allowed  map[int64]struct{} // nil unless the tournament is streamer-only
}

func (e *Engine) loadScope(ctx context.Context, tx domain.Tx, eventID int64) (*scope, error) {
	ev, err := loadEvent(ctx, tx, eventID, true)
	if err != nil {
		return nil, err
	}
	entries, err := tx.Tournaments().ListEntries(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournament entries: %w", err)
	}

	sc := &scope{ev: ev, entries: entries}
	for _, te := range entries {
		sc.entryIDs = append(sc.entryIDs, te.EntryID)
	}
	if ev.StreamerOnlyTournament {
		streamers, err := tx.Events().ListStreamerIDs(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list streamers: %w", err)
		}
		sc.allowed = make(map[int64]struct{}, len(streamers))
		for _, id := range streamers {
			sc.allowed[id] = struct{}{}
		}
	}
	return sc, nil
}

// RefreshScoresForUser recomputes one user's points and reports whether their
// row changed.
func (e *Engine) RefreshScoresForUser(ctx context.Context, eventID, userID int64) (bool, error) {
	var changed bool
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		sc, err := e.loadScope(ctx, tx, eventID)
		if err != nil {
			return err
		}
		changed, err = e.refreshUser(ctx, tx, sc, userID)
		return err
	})
	return changed, err
}

// refreshUser awards points for every active high score ranked within the
// points table. A user without points and without a row gets no row.
func (e *Engine) refreshUser(ctx context.Context, tx domain.Tx, sc *scope, userID int64) (bool, error) {
	entryScores := make(map[int64]domain.EntryScore)
	total := 0

	_, approved := sc.allowed[userID]
	if (sc.allowed == nil || approved) && len(sc.entryIDs) > 0 {
		highs, err := tx.HighScores().ListActiveByUser(ctx, sc.entryIDs, userID)
		if err != nil {
			return false, fmt.Errorf("failed to list high scores of user %d: %w", userID, err)
		}
		for _, hs := range highs {
			if hs.Ranking == nil || *hs.Ranking < 1 || *hs.Ranking > len(e.points) {
				continue
			}
			pts := e.points[*hs.Ranking-1]
			entryScores[hs.EntryID] = domain.EntryScore{Score: pts, Ranking: *hs.Ranking}
			total += pts
		}
	}

	existing, err := tx.Tournaments().GetScore(ctx, sc.ev.ID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load tournament score: %w", err)
	}
	if existing == nil {
		if total == 0 {
			return false, nil
		}
		existing = &domain.TournamentScore{EventID: sc.ev.ID, UserID: userID}
	} else if existing.Score == total && maps.Equal(existing.EntryScores, entryScores) {
		return false, nil
	}

	existing.Score = total
	existing.EntryScores = entryScores
	existing.UpdatedAt = e.clock.Now()
	if err := tx.Tournaments().SaveScore(ctx, existing); err != nil {
		return false, fmt.Errorf("failed to save tournament score: %w", err)
	}
	return true, nil
}

// refreshRankings assigns leaderboard positions 1..M to non-zero rows and
// clears the position of zero rows. Only rows whose position moved are written.
func (e *Engine) refreshRankings(ctx context.Context, tx domain.Tx, sc *scope) (int, error) {
	scores, err := tx.Tournaments().ListScores(ctx, sc.ev.ID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to list tournament scores: %w", err)
	}

	var ranked []*domain.TournamentScore
	next := make(map[int64]*int, len(scores))
	for _, s := range scores {
		if s.Score > 0 {
			ranked = append(ranked, s)
		}
	}
	slices.SortFunc(ranked, compareScores(sc.entries))
	for i, s := range ranked {
		rank := i + 1
		next[s.UserID] = &rank
	}

	changed := 0
	for _, s := range scores {
		pos := next[s.UserID]
		if equalRank(s.Ranking, pos) {
			continue
		}
		s.Ranking = pos
		if err := tx.Tournaments().SaveScore(ctx, s); err != nil {
			return 0, fmt.Errorf("failed to save tournament ranking: %w", err)
		}
		changed++
	}
	return changed, nil
}

func equalRank(a, b *int) bool {
	return (a == nil && b == nil) || (a != nil && b != nil && *a == *b)
}

// RefreshRankings re-ranks the leaderboard from the stored scores.
func (e *Engine) RefreshRankings(ctx context.Context, eventID int64) error {
	changed := 0
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		sc, err := e.loadScope(ctx, tx, eventID)
		if err != nil {
			return err
		}
		changed, err = e.refreshRankings(ctx, tx, sc)
		return err
	})
	if err != nil {
		return err
	}
	if changed > 0 {
		e.invalidate(ctx, eventID)
	}
	return nil
}

// RecalculateAll rebuilds every score of the tournament: users with a high
// score on any tournament game plus users that already have a row.
func (e *Engine) RecalculateAll(ctx context.Context, eventID int64) error {
	return e.inTxRecalculate(ctx, eventID, nil)
}

func (e *Engine) inTxRecalculate(ctx context.Context, eventID int64, mutate func(tx domain.Tx) error) error {
	start := e.clock.Now()
	users := 0
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		if mutate != nil {
			if _, err := loadEvent(ctx, tx, eventID, true); err != nil {
				return err
			}
			if err := mutate(tx); err != nil {
				return err
			}
		}
		var err error
		users, err = e.recalculate(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return err
	}
	e.recorder.ObservePass("tournament_recalculate", e.clock.Since(start), users)
	e.invalidate(ctx, eventID)
	return nil
}

func (e *Engine) recalculate(ctx context.Context, tx domain.Tx, eventID int64) (int, error) {
	sc, err := e.loadScope(ctx, tx, eventID)
	if err != nil {
		return 0, err
	}

	var userIDs []int64
	if len(sc.entryIDs) > 0 {
		userIDs, err = tx.HighScores().ListUserIDs(ctx, sc.entryIDs)
		if err != nil {
			return 0, fmt.Errorf("failed to list high score users: %w", err)
		}
	}
	existing, err := tx.Tournaments().ListScores(ctx, eventID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to list tournament scores: %w", err)
	}
	for _, s := range existing {
		userIDs = append(userIDs, s.UserID)
	}
	slices.Sort(userIDs)
	userIDs = slices.Compact(userIDs)

	for _, userID := range userIDs {
		if _, err := e.refreshUser(ctx, tx, sc, userID); err != nil {
			return 0, err
		}
	}
	if _, err := e.refreshRankings(ctx, tx, sc); err != nil {
		return 0, err
	}
	return len(userIDs), nil
}
