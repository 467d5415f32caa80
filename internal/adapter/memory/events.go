package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/pscheid92/jamscore/internal/domain"
)

type eventRepo struct{ t *tx }

func cloneEvent(ev domain.Event) domain.Event {
	ev.Categories = slices.Clone(ev.Categories)
	ev.ThemeStats.ByStatus = maps.Clone(ev.ThemeStats.ByStatus)
	return ev
}

func (r eventRepo) Create(_ context.Context, ev *domain.Event) error {
	if err := r.t.writable(tblEvents); err != nil {
		return err
	}
	ev.ID = r.t.st.id()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.t.clock.Now()
	}
	r.t.st.events[ev.ID] = cloneEvent(*ev)
	return nil
}

func (r eventRepo) GetByID(_ context.Context, id int64) (*domain.Event, error) {
	ev, ok := r.t.st.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	out := cloneEvent(ev)
	return &out, nil
}

func (r eventRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Event, error) {
	return r.GetByID(ctx, id)
}

func (r eventRepo) Save(_ context.Context, ev *domain.Event) error {
	if err := r.t.writable(tblEvents); err != nil {
		return err
	}
	if _, ok := r.t.st.events[ev.ID]; !ok {
		return domain.ErrEventNotFound
	}
	r.t.st.events[ev.ID] = cloneEvent(*ev)
	return nil
}

func (r eventRepo) IncrementThemeVotes(_ context.Context, eventID int64) (int64, error) {
	if err := r.t.writable(tblCounters); err != nil {
		return 0, err
	}
	if _, ok := r.t.st.events[eventID]; !ok {
		return 0, domain.ErrEventNotFound
	}
	r.t.st.counters[eventID]++
	return r.t.st.counters[eventID], nil
}

func (r eventRepo) SaveThemeStats(_ context.Context, eventID int64, stats domain.ThemeStats) error {
	if err := r.t.writable(tblEvents); err != nil {
		return err
	}
	ev, ok := r.t.st.events[eventID]
	if !ok {
		return fmt.Errorf("save theme stats: %w", domain.ErrEventNotFound)
	}
	ev.ThemeStats = stats
	r.t.st.events[eventID] = cloneEvent(ev)
	return nil
}

func (r eventRepo) ListStreamerIDs(_ context.Context, eventID int64) ([]int64, error) {
	return slices.Clone(r.t.st.streamers[eventID]), nil
}

func (r eventRepo) SetStreamerIDs(_ context.Context, eventID int64, userIDs []int64) error {
	if err := r.t.writable(tblStreamers); err != nil {
		return err
	}
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	r.t.st.streamers[eventID] = slices.Compact(ids)
	return nil
}

func (r eventRepo) ListByThemePhase(_ context.Context, phase domain.ThemePhase) ([]*domain.Event, error) {
	events := sortedValues(r.t.st.events,
		func(ev domain.Event) bool { return ev.ThemePhase == phase },
		func(a, b domain.Event) int { return cmp.Compare(a.ID, b.ID) })

	out := make([]*domain.Event, len(events))
	for i, ev := range events {
		c := cloneEvent(ev)
		out[i] = &c
	}
	return out, nil
}
