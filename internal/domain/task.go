package domain

import (
	"context"
	"time"
)

// Task is a follow-up recomputation run after the triggering transaction commits.
type Task interface {
	Kind() string
	task()
}

type KarmaRefresh struct {
	EntryID int64
}

func (KarmaRefresh) Kind() string { return "karma_refresh" }
func (KarmaRefresh) task() {}

// TournamentRefresh recomputes the listed users, or everybody when UserIDs is empty.
type TournamentRefresh struct {
	EventID int64
	UserIDs []int64
}

func (TournamentRefresh) Kind() string { return "tournament_refresh" }
func (TournamentRefresh) task() {}

type ThemeStatsRefresh struct {
	EventID int64
}

func (ThemeStatsRefresh) Kind() string { return "theme_stats_refresh" }
func (ThemeStatsRefresh) task() {}

// TaskQueue accepts follow-up work. Enqueue never blocks; it reports false
// when the task was dropped.
type TaskQueue interface {
	Enqueue(ctx context.Context, t Task) bool
}

// Recorder receives engine observations for metrics.
type Recorder interface {
	ObserveVote(kind, result string)
	ObservePass(pass string, elapsed time.Duration, changed int)
}

type NopRecorder struct{}

func (NopRecorder) ObserveVote(string, string) {}
func (NopRecorder) ObservePass(string, time.Duration, int) {}
