package rating

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

// CompetitionRanks ranks values that are sorted in descending order. Equal
// values share a rank and the next distinct value skips ahead ("1224").
func CompetitionRanks(sortedDesc []float64) []int {
	ranks := make([]int, len(sortedDesc))
	for i, v := range sortedDesc {
		if i > 0 && v == sortedDesc[i-1] {
			ranks[i] = ranks[i-1]
		} else {
			ranks[i] = i + 1
		}
	}
	return ranks
}

func rankingsNamespace(eventID int64) string {
	return "rankings:" + strconv.FormatInt(eventID, 10)
}

// ComputeRankings ranks every entry of a ranked division per category.
// Entries without a published rating in a category stay unranked there.
func (e *Engine) ComputeRankings(ctx context.Context, eventID int64) error {
	start := e.clock.Now()
	changed := 0
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		changed = 0
		ev, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		entries, err := tx.Entries().ListByEventForUpdate(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		n := ev.CategoryCount()
		next := make(map[int64][]*int, len(entries))
		for _, entry := range entries {
			next[entry.ID] = make([]*int, n)
		}

		for _, div := range domain.RankedDivisions {
			for c := range n {
				var rated []*domain.Entry
				for _, entry := range entries {
					if entry.Division == div && c < len(entry.Ratings) && entry.Ratings[c] != nil {
						rated = append(rated, entry)
					}
				}
				slices.SortFunc(rated, func(a, b *domain.Entry) int {
					return cmp.Or(cmp.Compare(*b.Ratings[c], *a.Ratings[c]), cmp.Compare(a.ID, b.ID))
				})

				values := make([]float64, len(rated))
				for i, entry := range rated {
					values[i] = *entry.Ratings[c]
				}
				for i, rank := range CompetitionRanks(values) {
					next[rated[i].ID][c] = &rank
				}
			}
		}

		for _, entry := range entries {
			if equalRanks(entry.Rankings, next[entry.ID]) {
				continue
			}
			entry.Rankings = next[entry.ID]
			if err := tx.Entries().Update(ctx, entry); err != nil {
				return fmt.Errorf("failed to store rankings of entry %d: %w", entry.ID, err)
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.recorder.ObservePass("entry_rankings", e.clock.Since(start), changed)
	e.purgeRankings(ctx, eventID)
	return nil
}

// ClearRankings removes all category rankings of the event.
func (e *Engine) ClearRankings(ctx context.Context, eventID int64) error {
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		entries, err := tx.Entries().ListByEventForUpdate(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}
		for _, entry := range entries {
			if !entry.Division.Ranked() || equalRanks(entry.Rankings, nil) {
				continue
			}
			entry.Rankings = make([]*int, len(entry.Rankings))
			if err := tx.Entries().Update(ctx, entry); err != nil {
				return fmt.Errorf("failed to clear rankings of entry %d: %w", entry.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.purgeRankings(ctx, eventID)
	return nil
}

func (e *Engine) purgeRankings(ctx context.Context, eventID int64) {
	if err := e.cache.Purge(ctx, rankingsNamespace(eventID)); err != nil {
		slog.WarnContext(ctx, "Failed to purge rankings cache", "event_id", eventID, "error", err)
	}
}

// equalRanks compares two ranking vectors, treating missing slots as unranked.
func equalRanks(a, b []*int) bool {
	for i := range max(len(a), len(b)) {
		var x, y *int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if (x == nil) != (y == nil) || (x != nil && *x != *y) {
			return false
		}
	}
	return true
}

type RankedEntry struct {
	EntryID int64   `json:"entry_id"`
	Title   string  `json:"title"`
	Rating  float64 `json:"rating"`
	Rank    int     `json:"rank"`
}

// Rankings lists the ranked entries of one division and category, best first.
// Results are cached until the next ranking pass.
func (e *Engine) Rankings(ctx context.Context, eventID int64, division domain.Division, category int) ([]RankedEntry, error) {
	if !division.Ranked() {
		return nil, apperrors.ValidationError("division is not ranked").WithField("division", division)
	}

	ns := rankingsNamespace(eventID)
	key := string(division) + ":" + strconv.Itoa(category)
	if raw, ok, err := e.cache.Get(ctx, ns, key); err != nil {
		slog.WarnContext(ctx, "Rankings cache read failed", "event_id", eventID, "error", err)
	} else if ok {
		var cached []RankedEntry
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	var out []RankedEntry
	err := e.store.View(ctx, func(tx domain.Tx) error {
		ev, err := loadEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if category < 0 || category >= ev.CategoryCount() {
			return apperrors.ValidationError("unknown category").WithField("category", category)
		}
		entries, err := tx.Entries().ListByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		out = []RankedEntry{}
		for _, entry := range entries {
			if entry.Division != division || category >= len(entry.Rankings) || entry.Rankings[category] == nil {
				continue
			}
			var rating float64
			if category < len(entry.Ratings) && entry.Ratings[category] != nil {
				rating = *entry.Ratings[category]
			}
			out = append(out, RankedEntry{EntryID: entry.ID, Title: entry.Title, Rating: rating, Rank: *entry.Rankings[category]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b RankedEntry) int {
		return cmp.Or(cmp.Compare(a.Rank, b.Rank), cmp.Compare(a.EntryID, b.EntryID))
	})

	if raw, err := json.Marshal(out); err == nil {
		if err := e.cache.Set(ctx, ns, key, raw, e.cacheTTL); err != nil {
			slog.WarnContext(ctx, "Rankings cache write failed", "event_id", eventID, "error", err)
		}
	}
	return out, nil
}
