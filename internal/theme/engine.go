// Package theme runs the theme selection workflow of an event: idea
// submission, up/down voting with Wilson-score elimination, the shortlist
// round and its timed countdown.
package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

type Engine struct {
	store    domain.Store
	tasks    domain.TaskQueue
	throttle domain.Throttle
	clock    clockwork.Clock
	settings domain.Settings
	recorder domain.Recorder
	passes   singleflight.Group
}

func NewEngine(store domain.Store, tasks domain.TaskQueue, throttle domain.Throttle, clock clockwork.Clock, settings domain.Settings, recorder domain.Recorder) *Engine {
	if recorder == nil {
		recorder = domain.NopRecorder{}
	}
	return &Engine{
		store:    store,
		tasks:    tasks,
		throttle: throttle,
		clock:    clock,
		settings: settings,
		recorder: recorder,
	}
}

func loadEvent(ctx context.Context, tx domain.Tx, eventID int64, forUpdate bool) (*domain.Event, error) {
	var (
		ev  *domain.Event
		err error
	)
	if forUpdate {
		ev, err = tx.Events().GetForUpdate(ctx, eventID)
	} else {
		ev, err = tx.Events().GetByID(ctx, eventID)
	}
	if errors.Is(err, domain.ErrEventNotFound) {
		return nil, apperrors.ValidationError("unknown event").WithField("event_id", eventID).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	return ev, nil
}

// loadThemeForUpdate locks the theme row and checks that it belongs to the event.
func loadThemeForUpdate(ctx context.Context, tx domain.Tx, eventID, themeID int64) (*domain.ThemeIdea, error) {
	t, err := tx.Themes().GetForUpdate(ctx, themeID)
	if errors.Is(err, domain.ErrThemeNotFound) || (err == nil && t.EventID != eventID) {
		return nil, apperrors.ValidationError("unknown theme").WithField("theme_id", themeID).WithCause(domain.ErrThemeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load theme %d: %w", themeID, err)
	}
	return t, nil
}

// scheduleStats enqueues a stats refresh unless one ran within StatsMinInterval.
// A refresh skipped here is not replayed; the next accepted action triggers it.
func (e *Engine) scheduleStats(ctx context.Context, eventID int64) {
	key := "theme-stats:" + strconv.FormatInt(eventID, 10)
	ok, err := e.throttle.Allow(ctx, key, e.settings.StatsMinInterval)
	if err != nil {
		slog.WarnContext(ctx, "Theme stats throttle unavailable", "event_id", eventID, "error", err)
		return
	}
	if !ok {
		return
	}
	if !e.tasks.Enqueue(ctx, domain.ThemeStatsRefresh{EventID: eventID}) {
		slog.WarnContext(ctx, "Theme stats refresh dropped", "event_id", eventID)
	}
}

// percentile is the share of pool rated strictly higher than t, so 0 is the best placement.
func percentile(pool []*domain.ThemeIdea, t *domain.ThemeIdea, rating func(*domain.ThemeIdea) float64) *float64 {
	if len(pool) == 0 {
		zero := 0.0
		return &zero
	}
	higher := 0
	for _, p := range pool {
		if rating(p) > rating(t) {
			higher++
		}
	}
	v := float64(higher) / float64(len(pool))
	return &v
}

func byElimination(t *domain.ThemeIdea) float64 { return t.RatingElimination }
func byShortlist(t *domain.ThemeIdea) float64 { return t.RatingShortlist }
