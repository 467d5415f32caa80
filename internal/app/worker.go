package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/platform/correlation"
)

const taskTimeout = 30 * time.Second

// Handlers dispatch tasks by kind. A nil handler drops its tasks.
type Handlers struct {
	KarmaRefresh      func(ctx context.Context, t domain.KarmaRefresh) error
	TournamentRefresh func(ctx context.Context, t domain.TournamentRefresh) error
	ThemeStatsRefresh func(ctx context.Context, t domain.ThemeStatsRefresh) error
}

// TaskObserver records task outcomes: "ok", "error", "dropped" or "unhandled".
type TaskObserver interface {
	ObserveTask(kind, result string, elapsed time.Duration)
	SetQueueDepth(depth int)
}

type nopObserver struct{}

func (nopObserver) ObserveTask(string, string, time.Duration) {}
func (nopObserver) SetQueueDepth(int) {}

type queuedTask struct {
	task          domain.Task
	correlationID string
}

// Worker is a bounded in-process task queue with a fixed number of
// consumers. A full queue drops new tasks; every task recomputes from stored
// state, so a later task of the same kind repairs a dropped one.
type Worker struct {
	queue    chan queuedTask
	workers  int
	observer TaskObserver
	clock    clockwork.Clock

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ domain.TaskQueue = (*Worker)(nil)

func NewWorker(size, workers int, observer TaskObserver, clock clockwork.Clock) *Worker {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Worker{
		queue:    make(chan queuedTask, size),
		workers:  max(workers, 1),
		observer: observer,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}
}

// Enqueue never blocks. It returns false when the queue is full or stopped.
func (w *Worker) Enqueue(ctx context.Context, t domain.Task) bool {
	select {
	case <-w.stopCh:
		w.drop(ctx, t, "stopped")
		return false
	default:
	}

	ctx, id := correlation.Ensure(ctx)
	select {
	case w.queue <- queuedTask{task: t, correlationID: id}:
		w.observer.SetQueueDepth(len(w.queue))
		return true
	default:
		w.drop(ctx, t, "queue full")
		return false
	}
}

func (w *Worker) drop(ctx context.Context, t domain.Task, reason string) {
	slog.WarnContext(ctx, "Task dropped", "kind", t.Kind(), "reason", reason)
	w.observer.ObserveTask(t.Kind(), "dropped", 0)
}

// Start launches the consumers. They run until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context, h Handlers) {
	for range w.workers {
		w.wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-w.stopCh:
					return
				case qt := <-w.queue:
					w.observer.SetQueueDepth(len(w.queue))
					w.run(ctx, h, qt)
				}
			}
		})
	}
	slog.Info("Task worker started", "workers", w.workers, "queue_size", cap(w.queue))
}

func (w *Worker) run(ctx context.Context, h Handlers, qt queuedTask) {
	kind := qt.task.Kind()
	ctx = correlation.WithTask(correlation.WithID(ctx, qt.correlationID), kind)
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	start := w.clock.Now()
	handled, err := dispatch(ctx, h, qt.task)
	elapsed := w.clock.Since(start)

	switch {
	case !handled:
		slog.WarnContext(ctx, "No handler for task")
		w.observer.ObserveTask(kind, "unhandled", elapsed)
	case err != nil:
		slog.ErrorContext(ctx, "Task failed", "error", err, "duration", elapsed)
		w.observer.ObserveTask(kind, "error", elapsed)
	default:
		slog.DebugContext(ctx, "Task done", "duration", elapsed)
		w.observer.ObserveTask(kind, "ok", elapsed)
	}
}

func dispatch(ctx context.Context, h Handlers, t domain.Task) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled, err = true, fmt.Errorf("task panicked: %v", r)
		}
	}()

	switch t := t.(type) {
	case domain.KarmaRefresh:
		if h.KarmaRefresh != nil {
			return true, h.KarmaRefresh(ctx, t)
		}
	case domain.TournamentRefresh:
		if h.TournamentRefresh != nil {
			return true, h.TournamentRefresh(ctx, t)
		}
	case domain.ThemeStatsRefresh:
		if h.ThemeStatsRefresh != nil {
			return true, h.ThemeStatsRefresh(ctx, t)
		}
	}
	return false, nil
}

// Stop halts the consumers and waits for in-flight tasks. Tasks still queued
// are discarded.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
	if n := len(w.queue); n > 0 {
		slog.Warn("Task worker stopped with queued tasks", "discarded", n)
	}
}
