package rating

import (
	"context"
	"fmt"
	"math"

	"github.com/pscheid92/jamscore/internal/domain"
)

const (
	votedKarma         = 2
	noLinksPenalty     = 20
	farmingPenalty     = 10
	karmaGivenCap      = 100
	karmaBase          = 74
	karmaGivenWeight   = 8.5
	karmaGivenBaseline = 10
)

// ComputeKarma balances feedback given against feedback received. The result
// is never negative.
func ComputeKarma(received, given float64) int {
	v := karmaBase + karmaGivenWeight*math.Sqrt(karmaGivenBaseline+min(given, karmaGivenCap)) - received
	return int(math.Floor(max(0, v)))
}

type karmaKey struct{ userID, entryID int64 }

// feedback sums, per distinct key, the best of the comment karma and the
// flat value of a vote.
type feedback map[karmaKey]int

func (f feedback) comment(k karmaKey, karma int) { f[k] = max(f[k], karma) }
func (f feedback) vote(k karmaKey) { f[k] = max(f[k], votedKarma) }

func (f feedback) total() float64 {
	sum := 0
	for _, v := range f {
		sum += v
	}
	return float64(sum)
}

// RefreshKarma recomputes and stores the karma of one entry.
func (e *Engine) RefreshKarma(ctx context.Context, entryID int64) (int, error) {
	var karma int
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		entry, err := loadEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		ev, err := loadEvent(ctx, tx, entry.EventID)
		if err != nil {
			return err
		}

		received, raters, err := receivedFeedback(ctx, tx, entry)
		if err != nil {
			return err
		}
		given, err := givenFeedback(ctx, tx, entry)
		if err != nil {
			return err
		}

		karma = ComputeKarma(received, given)
		if !entry.HasLinks {
			karma -= noLinksPenalty
		}
		if ev.KarmaFarmingPenalty && raters > e.settings.RequiredEntryVotes {
			karma -= farmingPenalty
		}
		karma = max(0, karma)

		entry.Karma = karma
		if err := tx.Entries().Update(ctx, entry); err != nil {
			return fmt.Errorf("failed to update karma of entry %d: %w", entryID, err)
		}
		return nil
	})
	return karma, err
}

// receivedFeedback aggregates comments and votes on the entry by people
// outside its team. It also returns the number of distinct raters.
func receivedFeedback(ctx context.Context, tx domain.Tx, entry *domain.Entry) (float64, int, error) {
	votes, err := tx.Entries().ListVotesForEntry(ctx, entry.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list entry votes: %w", err)
	}
	comments, err := tx.Comments().ListForEntry(ctx, entry.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list entry comments: %w", err)
	}

	fb := feedback{}
	for _, c := range comments {
		if !entry.IsTeamMember(c.UserID) {
			fb.comment(karmaKey{userID: c.UserID}, c.Karma)
		}
	}
	for _, v := range votes {
		if !entry.IsTeamMember(v.UserID) {
			fb.vote(karmaKey{userID: v.UserID})
		}
	}
	return fb.total(), len(fb), nil
}

// givenFeedback aggregates what the team contributed to other entries, once
// per (member, target entry) pair.
func givenFeedback(ctx context.Context, tx domain.Tx, entry *domain.Entry) (float64, error) {
	if len(entry.TeamUserIDs) == 0 {
		return 0, nil
	}
	votes, err := tx.Entries().ListVotesByUsers(ctx, entry.EventID, entry.TeamUserIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to list team votes: %w", err)
	}
	comments, err := tx.Comments().ListByUsers(ctx, entry.EventID, entry.TeamUserIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to list team comments: %w", err)
	}

	fb := feedback{}
	for _, c := range comments {
		if c.EntryID != entry.ID {
			fb.comment(karmaKey{c.UserID, c.EntryID}, c.Karma)
		}
	}
	for _, v := range votes {
		if v.EntryID != entry.ID {
			fb.vote(karmaKey{v.UserID, v.EntryID})
		}
	}
	return fb.total(), nil
}
