package theme

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

// Idea is one submitted title. ID is zero for a new idea and set when the
// user resubmits an idea they already own.
type Idea struct {
	ID    int64
	Title string
}

// SubmitIdeas replaces the user's idea set for the event and returns the
// stored ideas. Outside the ideas and voting phases it does nothing.
func (e *Engine) SubmitIdeas(ctx context.Context, userID, eventID int64, ideas []Idea) ([]*domain.ThemeIdea, error) {
	limit := e.settings.ThemeIdeasPerUser
	if len(ideas) > limit {
		return nil, apperrors.ValidationError(fmt.Sprintf("at most %d theme ideas allowed", limit)).
			WithField("submitted", len(ideas))
	}

	cleaned := make([]Idea, 0, len(ideas))
	for _, idea := range ideas {
		title := strings.TrimSpace(idea.Title)
		if title == "" {
			continue
		}
		if Slugify(title) == "" {
			return nil, apperrors.ValidationError("theme idea must contain letters or digits").WithField("title", title)
		}
		cleaned = append(cleaned, Idea{ID: idea.ID, Title: title})
	}

	var (
		result  []*domain.ThemeIdea
		applied bool
	)
	err := e.store.InTx(ctx, func(tx domain.Tx) error {
		// The event lock serializes submissions, which keeps quota and slug
		// checks consistent with concurrent submitters.
		ev, err := loadEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		if ev.ThemePhase != domain.ThemePhaseIdeas && ev.ThemePhase != domain.ThemePhaseVoting {
			slog.DebugContext(ctx, "Idea submission outside of phase", "event_id", eventID, "phase", ev.ThemePhase)
			return nil
		}

		current, err := tx.Themes().ListByUser(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("failed to list user ideas: %w", err)
		}

		unchanged := make(map[int64]string, len(cleaned))
		for _, idea := range cleaned {
			if idea.ID != 0 {
				unchanged[idea.ID] = idea.Title
			}
		}

		kept := make(map[int64]bool, len(current))
		for _, t := range current {
			title, resubmitted := unchanged[t.ID]
			switch {
			case resubmitted && title == t.Title:
				kept[t.ID] = true
			case !t.Status.Mutable():
				kept[t.ID] = true
			default:
				if err := tx.Themes().Delete(ctx, t.ID); err != nil {
					return fmt.Errorf("failed to withdraw idea %d: %w", t.ID, err)
				}
			}
		}

		quota := limit - len(kept)
		for _, idea := range cleaned {
			if kept[idea.ID] {
				continue
			}
			if quota <= 0 {
				break
			}
			if err := e.createIdea(ctx, tx, userID, eventID, idea.Title); err != nil {
				return err
			}
			quota--
		}

		result, err = tx.Themes().ListByUser(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("failed to list user ideas: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		e.scheduleStats(ctx, eventID)
	}
	return result, nil
}

func (e *Engine) createIdea(ctx context.Context, tx domain.Tx, userID, eventID int64, title string) error {
	slug := Slugify(title)
	taken, err := tx.Themes().ExistsSlug(ctx, eventID, slug)
	if err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}

	status := domain.ThemeActive
	if taken {
		status = domain.ThemeDuplicate
	}

	low, high := WilsonBounds(0, 0)
	t := &domain.ThemeIdea{
		EventID:           eventID,
		SubmitterID:       userID,
		Title:             title,
		Slug:              slug,
		Status:            status,
		RatingElimination: high,
		RatingShortlist:   low,
		CreatedAt:         e.clock.Now(),
	}
	if err := tx.Themes().Create(ctx, t); err != nil {
		return fmt.Errorf("failed to create idea: %w", err)
	}
	return nil
}
