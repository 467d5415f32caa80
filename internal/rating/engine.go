// Package rating turns per-category entry votes into published averages,
// competition rankings within each division and the karma score of every
// entry.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

const maxVote = 10

type Engine struct {
	store    domain.Store
	tasks    domain.TaskQueue
	cache    domain.Cache
	clock    clockwork.Clock
	settings domain.Settings
	recorder domain.Recorder
	cacheTTL time.Duration
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
		settings: settings,
		recorder: recorder,
		cacheTTL: cacheTTL,
	}
}

func loadEntry(ctx context.Context, tx domain.Tx, entryID int64) (*domain.Entry, error) {
	e, err := tx.Entries().GetForUpdate(ctx, entryID)
	if errors.Is(err, domain.ErrEntryNotFound) {
		return nil, apperrors.ValidationError("unknown entry").WithField("entry_id", entryID).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %d: %w", entryID, err)
	}
	return e, nil
}

func loadEvent(ctx context.Context, tx domain.Tx, eventID int64) (*domain.Event, error) {
	ev, err := tx.Events().GetByID(ctx, eventID)
	if errors.Is(err, domain.ErrEventNotFound) {
		return nil, apperrors.ValidationError("unknown event").WithField("event_id", eventID).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	return ev, nil
}

// SaveEntryVote stores the user's per-category ratings of an entry and
// republishes the entry's averages. Values in opted-out categories or outside
// [0, 10] count as "not rated"; a vote without any rating is removed. Karma of
// the rated entry and of the voter's own entry is refreshed in the background.
func (e *Engine) SaveEntryVote(ctx context.Context, userID, entryID, eventID int64, votes []float64) error {
	var (
		applied bool
		ownID   int64
	)
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		applied, ownID = false, 0

		ev, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if len(votes) != ev.CategoryCount() {
			return apperrors.ValidationError(fmt.Sprintf("expected %d category votes", ev.CategoryCount())).
				WithField("submitted", len(votes))
		}
		entry, err := loadEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if entry.EventID != eventID {
			return apperrors.ValidationError("unknown entry").WithField("entry_id", entryID).WithCause(domain.ErrEntryNotFound)
		}
		if entry.IsTeamMember(userID) {
			return apperrors.ValidationError("cannot rate your own entry").WithField("entry_id", entryID)
		}
		if ev.EntryPhase != domain.EntryPhaseVoting {
			slog.DebugContext(ctx, "Entry vote outside of phase", "event_id", eventID, "phase", ev.EntryPhase)
			return nil
		}

		vote := domain.EntryVote{
			UserID:    userID,
			EntryID:   entryID,
			EventID:   eventID,
			Votes:     sanitize(entry, votes),
			UpdatedAt: e.clock.Now(),
		}
		if vote.Empty() {
			err = tx.Entries().DeleteVote(ctx, userID, entryID)
		} else {
			err = tx.Entries().UpsertVote(ctx, vote)
		}
		if err != nil {
			return fmt.Errorf("failed to store entry vote: %w", err)
		}

		if err := e.refreshRatings(ctx, tx, entry, ev.CategoryCount()); err != nil {
			return err
		}

		own, err := tx.Entries().FindByUser(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("failed to find voter entry: %w", err)
		}
		if own != nil {
			ownID = own.ID
		}
		applied = true
		return nil
	})
	if err != nil {
		e.recorder.ObserveVote("entry", "error")
		return err
	}
	if !applied {
		e.recorder.ObserveVote("entry", "ignored")
		return nil
	}
	e.recorder.ObserveVote("entry", "applied")

	e.enqueueKarma(ctx, entryID)
	if ownID != 0 {
		e.enqueueKarma(ctx, ownID)
	}
	return nil
}

func (e *Engine) enqueueKarma(ctx context.Context, entryID int64) {
	if !e.tasks.Enqueue(ctx, domain.KarmaRefresh{EntryID: entryID}) {
		slog.WarnContext(ctx, "Karma refresh dropped", "entry_id", entryID)
	}
}

func sanitize(entry *domain.Entry, votes []float64) []float64 {
	out := make([]float64, len(votes))
	for i, v := range votes {
		if entry.OptedOut(i) || math.IsNaN(v) || v < 0 || v > maxVote {
			continue
		}
		out[i] = v
	}
	return out
}

// RefreshEntryRatings recomputes an entry's published averages from its votes.
func (e *Engine) RefreshEntryRatings(ctx context.Context, entryID int64) error {
	return e.store.InTx(ctx, func(tx domain.Tx) error {
		entry, err := loadEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		ev, err := loadEvent(ctx, tx, entry.EventID)
		if err != nil {
			return err
		}
		return e.refreshRatings(ctx, tx, entry, ev.CategoryCount())
	})
}

func (e *Engine) refreshRatings(ctx context.Context, tx domain.Tx, entry *domain.Entry, categories int) error {
	votes, err := tx.Entries().ListVotesForEntry(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to list entry votes: %w", err)
	}

	entry.Ratings = Averages(votes, categories, e.settings.PublishedRatingVotes())
	entry.RatingCount = len(votes)
	if err := tx.Entries().Update(ctx, entry); err != nil {
		return fmt.Errorf("failed to update entry %d: %w", entry.ID, err)
	}
	return nil
}

// Averages returns the mean of the non-zero votes per category, or nil for a
// category with fewer than required contributing votes.
func Averages(votes []domain.EntryVote, categories, required int) []*float64 {
	ratings := make([]*float64, categories)
	for c := range categories {
		sum, count := 0.0, 0
		for _, v := range votes {
			if c < len(v.Votes) && v.Votes[c] != 0 {
				sum += v.Votes[c]
				count++
			}
		}
		if count > 0 && count >= required {
			avg := sum / float64(count)
			ratings[c] = &avg
		}
	}
	return ratings
}
