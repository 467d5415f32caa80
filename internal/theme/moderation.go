package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

// Ban hides an idea from every round.
func (e *Engine) Ban(ctx context.Context, themeID int64) error {
	return e.setStatus(ctx, themeID, func(*domain.Event) domain.ThemeStatus { return domain.ThemeBanned })
}

// Unban returns an idea to open voting while ideas are still collected or
// voted on. Later in the event it comes back as out, so it cannot re-enter a
// round it missed.
func (e *Engine) Unban(ctx context.Context, themeID int64) error {
	return e.setStatus(ctx, themeID, func(ev *domain.Event) domain.ThemeStatus {
		switch ev.ThemePhase {
		case domain.ThemePhaseIdeas, domain.ThemePhaseVoting:
			return domain.ThemeActive
		default:
			return domain.ThemeOut
		}
	})
}

func (e *Engine) setStatus(ctx context.Context, themeID int64, target func(*domain.Event) domain.ThemeStatus) error {
	var eventID int64
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		t, err := tx.Themes().GetByID(ctx, themeID)
		if errors.Is(err, domain.ErrThemeNotFound) {
			return apperrors.NotFoundError("theme not found").WithField("theme_id", themeID).WithCause(err)
		}
		if err != nil {
			return fmt.Errorf("failed to load theme %d: %w", themeID, err)
		}

		// event before theme, the order every pass locks in
		ev, err := loadEvent(ctx, tx, t.EventID, true)
		if err != nil {
			return err
		}
		if t, err = loadThemeForUpdate(ctx, tx, ev.ID, themeID); err != nil {
			return err
		}

		prev, next := t.Status, target(ev)
		if err := t.SetStatus(next); err != nil {
			return apperrors.ConflictError("theme status change not allowed").
				WithField("from", prev).WithField("to", next).WithCause(err)
		}
		if err := tx.Themes().Update(ctx, t); err != nil {
			return fmt.Errorf("failed to update theme %d: %w", themeID, err)
		}
		eventID = t.EventID
		slog.InfoContext(ctx, "Theme status changed", "theme_id", themeID, "from", prev, "to", next)
		return nil
	})
	if err != nil {
		return err
	}
	e.scheduleStats(ctx, eventID)
	return nil
}
