package theme

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/jamscore/internal/adapter/memory"
	"github.com/pscheid92/jamscore/internal/domain"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []domain.Task
}

func (q *recordingQueue) Enqueue(_ context.Context, t domain.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return true
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type fixture struct {
	engine *Engine
	store  *memory.Store
	queue  *recordingQueue
	clock  *clockwork.FakeClock
}

func testSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.ShortlistSize = 3
	s.MinRemainingThemes = 1
	s.EliminationMinNotes = 5
	s.ThemeIdeasRequired = 2
	return s
}

func newFixture(t *testing.T, settings domain.Settings) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewStore(clock)
	queue := &recordingQueue{}
	engine := NewEngine(store, queue, memory.NewThrottle(clock), clock, settings, nil)
	return &fixture{engine: engine, store: store, queue: queue, clock: clock}
}

func (f *fixture) seedEvent(t *testing.T, ev domain.Event) int64 {
	t.Helper()
	err := f.store.InTx(context.Background(), func(tx domain.Tx) error {
		return tx.Events().Create(context.Background(), &ev)
	})
	require.NoError(t, err)
	return ev.ID
}

// seedTheme stores an idea with Wilson bounds matching its tally.
func (f *fixture) seedTheme(t *testing.T, eventID int64, title string, status domain.ThemeStatus, notes, score int) *domain.ThemeIdea {
	t.Helper()
	low, high := WilsonBounds(float64(notes+score)/2, float64(notes))
	idea := &domain.ThemeIdea{
		EventID:           eventID,
		SubmitterID:       99,
		Title:             title,
		Slug:              Slugify(title),
		Status:            status,
		Score:             score,
		Notes:             notes,
		RatingElimination: high,
		RatingShortlist:   low,
		CreatedAt:         f.clock.Now(),
	}
	err := f.store.InTx(context.Background(), func(tx domain.Tx) error {
		return tx.Themes().Create(context.Background(), idea)
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return idea
}

func (f *fixture) theme(t *testing.T, id int64) *domain.ThemeIdea {
	t.Helper()
	var out *domain.ThemeIdea
	err := f.store.View(context.Background(), func(tx domain.Tx) error {
		var err error
		out, err = tx.Themes().GetByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) event(t *testing.T, id int64) *domain.Event {
	t.Helper()
	var out *domain.Event
	err := f.store.View(context.Background(), func(tx domain.Tx) error {
		var err error
		out, err = tx.Events().GetByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return out
}
