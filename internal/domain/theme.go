package domain

import (
	"fmt"
	"slices"
	"time"
)

type ThemeStatus string

const (
	ThemeActive    ThemeStatus = "active"
	ThemeDuplicate ThemeStatus = "duplicate"
	ThemeBanned    ThemeStatus = "banned"
	ThemeOut       ThemeStatus = "out"
	ThemeShortlist ThemeStatus = "shortlist"
)

var themeStatusTransitions = map[ThemeStatus][]ThemeStatus{
	ThemeActive:    {ThemeDuplicate, ThemeBanned, ThemeOut, ThemeShortlist},
	ThemeDuplicate: {ThemeBanned},
	ThemeBanned:    {ThemeActive, ThemeOut},
	ThemeOut:       {ThemeShortlist, ThemeBanned},
	ThemeShortlist: {ThemeOut, ThemeBanned},
}

func (s ThemeStatus) Valid() bool {
	_, ok := themeStatusTransitions[s]
	return ok
}

func (s ThemeStatus) CanTransitionTo(next ThemeStatus) bool {
	return s == next || slices.Contains(themeStatusTransitions[s], next)
}

// Mutable reports whether the submitter may still withdraw or retitle the idea.
func (s ThemeStatus) Mutable() bool {
	return s == ThemeActive || s == ThemeDuplicate
}

type ThemeIdea struct {
	ID                int64
	EventID           int64
	SubmitterID       int64
	Title             string
	Slug              string
	Status            ThemeStatus
	Score             int
	Notes             int
	RatingElimination float64
	RatingShortlist   float64
	NormalizedScore   float64
	Ranking           *float64
	CreatedAt         time.Time
}

func (t *ThemeIdea) SetStatus(next ThemeStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: theme %d %s -> %s", ErrInvalidTransition, t.ID, t.Status, next)
	}
	t.Status = next
	return nil
}

// ResetTally clears votes-derived fields, used when the shortlist round starts.
func (t *ThemeIdea) ResetTally() {
	t.Score = 0
	t.Notes = 0
	t.NormalizedScore = 0
}

type ThemeVote struct {
	UserID    int64
	ThemeID   int64
	EventID   int64
	Score     int
	UpdatedAt time.Time
}

// ThemeVoteRecord is one entry of the append-only vote history.
type ThemeVoteRecord struct {
	UserID  int64
	ThemeID int64
	EventID int64
	Score   int
	CastAt  time.Time
}
