package tournament

import (
	"context"
	"errors"
	"fmt"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

// AddEntry appends a game to the tournament and recalculates all scores.
func (e *Engine) AddEntry(ctx context.Context, eventID, entryID int64) error {
	return e.inTxRecalculate(ctx, eventID, func(tx domain.Tx) error {
		if _, err := tx.Entries().GetByID(ctx, entryID); err != nil {
			if errors.Is(err, domain.ErrEntryNotFound) {
				return apperrors.ValidationError("unknown entry").WithField("entry_id", entryID).WithCause(err)
			}
			return fmt.Errorf("failed to load entry %d: %w", entryID, err)
		}

		entries, err := tx.Tournaments().ListEntries(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list tournament entries: %w", err)
		}
		ordering := 1
		for _, te := range entries {
			if te.EntryID == entryID {
				return apperrors.ConflictError("entry already in tournament").WithField("entry_id", entryID)
			}
			ordering = max(ordering, te.Ordering+1)
		}

		te := domain.TournamentEntry{EventID: eventID, EntryID: entryID, Ordering: ordering}
		if err := tx.Tournaments().SaveEntry(ctx, te); err != nil {
			return fmt.Errorf("failed to save tournament entry: %w", err)
		}
		return nil
	})
}

// RemoveEntry drops a game from the tournament; points earned on it vanish
// with the recalculation.
func (e *Engine) RemoveEntry(ctx context.Context, eventID, entryID int64) error {
	return e.inTxRecalculate(ctx, eventID, func(tx domain.Tx) error {
		err := tx.Tournaments().DeleteEntry(ctx, eventID, entryID)
		if errors.Is(err, domain.ErrTournamentEntryNotFound) {
			return apperrors.NotFoundError("entry is not part of the tournament").WithField("entry_id", entryID).WithCause(err)
		}
		if err != nil {
			return fmt.Errorf("failed to delete tournament entry: %w", err)
		}
		return nil
	})
}

// MoveEntry places a game at the zero-based position and renumbers the
// ordering of every game. Positions past the end move the game last.
func (e *Engine) MoveEntry(ctx context.Context, eventID, entryID int64, position int) error {
	return e.inTxRecalculate(ctx, eventID, func(tx domain.Tx) error {
		entries, err := tx.Tournaments().ListEntries(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list tournament entries: %w", err)
		}

		from := -1
		for i, te := range entries {
			if te.EntryID == entryID {
				from = i
				break
			}
		}
		if from < 0 {
			return apperrors.NotFoundError("entry is not part of the tournament").
				WithField("entry_id", entryID).WithCause(domain.ErrTournamentEntryNotFound)
		}

		moved := entries[from]
		rest := append(entries[:from:from], entries[from+1:]...)
		position = min(max(position, 0), len(rest))
		reordered := append(rest[:position:position], moved)
		reordered = append(reordered, rest[position:]...)

		for i, te := range reordered {
			if te.Ordering == i+1 {
				continue
			}
			te.Ordering = i + 1
			if err := tx.Tournaments().SaveEntry(ctx, te); err != nil {
				return fmt.Errorf("failed to save tournament entry: %w", err)
			}
		}
		return nil
	})
}
