package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/platform/correlation"
)

// TimedEliminator is the part of the theme engine the ticker drives.
type TimedEliminator interface {
	RunTimedElimination(ctx context.Context, eventID int64) ([]int64, error)
}

// EliminationTicker periodically removes overdue shortlist themes. With a
// lease, only the instance holding it runs the countdown.
type EliminationTicker struct {
	store    domain.Store
	themes   TimedEliminator
	lease    domain.Lease
	clock    clockwork.Clock
	interval time.Duration

	leader bool
}

func NewEliminationTicker(store domain.Store, themes TimedEliminator, lease domain.Lease, clock clockwork.Clock, interval time.Duration) *EliminationTicker {
	return &EliminationTicker{
		store:    store,
		themes:   themes,
		lease:    lease,
		clock:    clock,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled.
func (t *EliminationTicker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()
	defer t.release()

	slog.InfoContext(ctx, "Elimination ticker started", "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.Tick(ctx)
		}
	}
}

// Tick runs one round over every event in the shortlist phase.
func (t *EliminationTicker) Tick(ctx context.Context) {
	ctx = correlation.WithTask(correlation.WithID(ctx, correlation.NewID()), "timed_elimination")
	if !t.holdLease(ctx) {
		return
	}

	events, err := t.dueEvents(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Elimination ticker: listing events failed", "error", err)
		return
	}
	for _, id := range events {
		removed, err := t.themes.RunTimedElimination(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Elimination ticker: elimination failed", "event_id", id, "error", err)
			continue
		}
		if len(removed) > 0 {
			slog.DebugContext(ctx, "Elimination ticker: themes removed", "event_id", id, "themes", removed)
		}
	}
}

func (t *EliminationTicker) dueEvents(ctx context.Context) ([]int64, error) {
	now := t.clock.Now()
	var ids []int64
	err := t.store.View(ctx, func(tx domain.Tx) error {
		events, err := tx.Events().ListByThemePhase(ctx, domain.ThemePhaseShortlist)
		if err != nil {
			return fmt.Errorf("failed to list shortlist events: %w", err)
		}
		for _, ev := range events {
			if ev.ShortlistElimination.Due(now) {
				ids = append(ids, ev.ID)
			}
		}
		return nil
	})
	return ids, err
}

func (t *EliminationTicker) holdLease(ctx context.Context) bool {
	if t.lease == nil {
		return true
	}
	if t.leader {
		err := t.lease.Renew(ctx)
		if err == nil {
			return true
		}
		slog.WarnContext(ctx, "Elimination ticker: lost leadership", "error", err)
		t.leader = false
	}
	ok, err := t.lease.TryAcquire(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Elimination ticker: lease acquisition failed", "error", err)
		return false
	}
	if ok {
		slog.InfoContext(ctx, "Elimination ticker: acquired leadership")
	}
	t.leader = ok
	return ok
}

func (t *EliminationTicker) release() {
	if t.lease == nil || !t.leader {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.lease.Release(ctx); err != nil {
		slog.WarnContext(ctx, "Elimination ticker: lease release failed", "error", err)
	}
	t.leader = false
}
