package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/platform/correlation"
)

type outcome struct {
	kind   string
	result string
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (o *recordingObserver) ObserveTask(kind, result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome{kind, result})
}

func (o *recordingObserver) SetQueueDepth(int) {}

func (o *recordingObserver) snapshot() []outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]outcome(nil), o.outcomes...)
}

func TestWorker_DispatchesByKind(t *testing.T) {
	obs := &recordingObserver{}
	w := NewWorker(8, 2, obs, clockwork.NewRealClock())

	var mu sync.Mutex
	var karma []int64
	var tasks []string
	w.Start(context.Background(), Handlers{
		KarmaRefresh: func(ctx context.Context, t domain.KarmaRefresh) error {
			mu.Lock()
			defer mu.Unlock()
			karma = append(karma, t.EntryID)
			kind, _ := correlation.Task(ctx)
			tasks = append(tasks, kind)
			return nil
		},
		TournamentRefresh: func(context.Context, domain.TournamentRefresh) error {
			return errors.New("storage down")
		},
	})
	defer w.Stop()

	ctx := correlation.WithID(context.Background(), "abcd1234")
	require.True(t, w.Enqueue(ctx, domain.KarmaRefresh{EntryID: 7}))
	require.True(t, w.Enqueue(ctx, domain.TournamentRefresh{EventID: 1}))
	require.True(t, w.Enqueue(ctx, domain.ThemeStatsRefresh{EventID: 1}))

	assert.Eventually(t, func() bool { return len(obs.snapshot()) == 3 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []outcome{
		{"karma_refresh", "ok"},
		{"tournament_refresh", "error"},
		{"theme_stats_refresh", "unhandled"},
	}, obs.snapshot())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{7}, karma)
	assert.Equal(t, []string{"karma_refresh"}, tasks)
}

func TestWorker_CarriesCorrelationID(t *testing.T) {
	w := NewWorker(1, 1, nil, clockwork.NewRealClock())
	got := make(chan string, 1)
	w.Start(context.Background(), Handlers{
		KarmaRefresh: func(ctx context.Context, _ domain.KarmaRefresh) error {
			id, _ := correlation.ID(ctx)
			got <- id
			return nil
		},
	})
	defer w.Stop()

	require.True(t, w.Enqueue(correlation.WithID(context.Background(), "feedbeef"), domain.KarmaRefresh{}))
	select {
	case id := <-got:
		assert.Equal(t, "feedbeef", id)
	case <-time.After(time.Second):
		t.Fatal("task not run")
	}
}

func TestWorker_DropsWhenFull(t *testing.T) {
	obs := &recordingObserver{}
	w := NewWorker(2, 1, obs, clockwork.NewRealClock())

	// not started: the buffer fills up
	assert.True(t, w.Enqueue(context.Background(), domain.KarmaRefresh{EntryID: 1}))
	assert.True(t, w.Enqueue(context.Background(), domain.KarmaRefresh{EntryID: 2}))
	assert.False(t, w.Enqueue(context.Background(), domain.KarmaRefresh{EntryID: 3}))
	assert.Equal(t, []outcome{{"karma_refresh", "dropped"}}, obs.snapshot())
}

func TestWorker_RecoversPanics(t *testing.T) {
	obs := &recordingObserver{}
	w := NewWorker(4, 1, obs, clockwork.NewRealClock())
	w.Start(context.Background(), Handlers{
		KarmaRefresh: func(context.Context, domain.KarmaRefresh) error { panic("bad entry") },
	})
	defer w.Stop()

	w.Enqueue(context.Background(), domain.KarmaRefresh{EntryID: 1})
	w.Enqueue(context.Background(), domain.KarmaRefresh{EntryID: 2})

	assert.Eventually(t, func() bool { return len(obs.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []outcome{{"karma_refresh", "error"}, {"karma_refresh", "error"}}, obs.snapshot())
}

func TestWorker_StopRejectsNewTasks(t *testing.T) {
	obs := &recordingObserver{}
	w := NewWorker(4, 1, obs, clockwork.NewRealClock())
	w.Start(context.Background(), Handlers{})
	w.Stop()
	w.Stop()

	assert.False(t, w.Enqueue(context.Background(), domain.KarmaRefresh{}))
	assert.Equal(t, []outcome{{"karma_refresh", "dropped"}}, obs.snapshot())
}
