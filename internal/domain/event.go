package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

type ThemePhase string

const (
	ThemePhaseDisabled  ThemePhase = "disabled"
	ThemePhaseIdeas     ThemePhase = "ideas"
	ThemePhaseVoting    ThemePhase = "voting"
	ThemePhaseShortlist ThemePhase = "shortlist"
	ThemePhaseClosed    ThemePhase = "closed"
	ThemePhaseResults   ThemePhase = "results"
)

var themePhaseTransitions = map[ThemePhase][]ThemePhase{
	ThemePhaseDisabled:  {ThemePhaseIdeas},
	ThemePhaseIdeas:     {ThemePhaseDisabled, ThemePhaseVoting},
	ThemePhaseVoting:    {ThemePhaseIdeas, ThemePhaseShortlist},
	ThemePhaseShortlist: {ThemePhaseClosed},
	ThemePhaseClosed:    {ThemePhaseShortlist, ThemePhaseResults},
	ThemePhaseResults:   {ThemePhaseClosed},
}

func (p ThemePhase) Valid() bool {
	_, ok := themePhaseTransitions[p]
	return ok
}

// CanTransitionTo reports whether the theme workflow may move from p to next.
// Staying in the same phase is always allowed.
func (p ThemePhase) CanTransitionTo(next ThemePhase) bool {
	return p == next || slices.Contains(themePhaseTransitions[p], next)
}

type EntryPhase string

const (
	EntryPhaseDisabled    EntryPhase = "disabled"
	EntryPhaseSubmissions EntryPhase = "submissions"
	EntryPhaseVoting      EntryPhase = "voting"
	EntryPhaseResults     EntryPhase = "results"
)

type TournamentPhase string

const (
	TournamentPhaseDisabled TournamentPhase = "disabled"
	TournamentPhaseOff      TournamentPhase = "off"
	TournamentPhasePlaying  TournamentPhase = "playing"
	TournamentPhaseClosed   TournamentPhase = "closed"
	TournamentPhaseResults  TournamentPhase = "results"
)

// ShortlistElimination is the optional countdown that removes one shortlist
// theme per interval. A zero NextAt means the countdown is not armed.
type ShortlistElimination struct {
	Enabled    bool          `json:"enabled"`
	NextAt     time.Time     `json:"next_at"`
	Interval   time.Duration `json:"interval"`
	Eliminated int           `json:"eliminated"`
}

func (s ShortlistElimination) Due(now time.Time) bool {
	return s.Enabled && !s.NextAt.IsZero() && !s.NextAt.After(now)
}

// ThemeStats is the event-wide summary refreshed at most once per StatsMinInterval.
type ThemeStats struct {
	Ideas       int                 `json:"ideas"`
	Submitters  int                 `json:"submitters"`
	ByStatus    map[ThemeStatus]int `json:"by_status"`
	Votes       int                 `json:"votes"`
	Voters      int                 `json:"voters"`
	RefreshedAt time.Time           `json:"refreshed_at"`
}

type Event struct {
	ID                     int64
	Name                   string
	ThemePhase             ThemePhase
	EntryPhase             EntryPhase
	TournamentPhase        TournamentPhase
	Categories             []string
	KarmaFarmingPenalty    bool
	StreamerOnlyTournament bool
	ShortlistElimination   ShortlistElimination
	ThemeStats             ThemeStats
	CreatedAt              time.Time
}

func (e *Event) CategoryCount() int { return len(e.Categories) }

// SetThemePhase applies a validated theme phase change.
func (e *Event) SetThemePhase(next ThemePhase) error {
	if !next.Valid() || !e.ThemePhase.CanTransitionTo(next) {
		return fmt.Errorf("%w: event %d theme phase %s -> %s", ErrInvalidTransition, e.ID, e.ThemePhase, next)
	}
	e.ThemePhase = next
	return nil
}

// Settings are the competition constants shared by all engines.
type Settings struct {
	RequiredEntryVotes   int
	ThemeIdeasPerUser    int
	ThemeIdeasRequired   int
	EliminationModulo    int
	EliminationMinNotes  int
	EliminationThreshold float64
	ShortlistSize        int
	MinRemainingThemes   int
	StatsMinInterval     time.Duration
	TournamentPoints     []int
}

func DefaultSettings() Settings {
	return Settings{
		RequiredEntryVotes:   10,
		ThemeIdeasPerUser:    3,
		ThemeIdeasRequired:   10,
		EliminationModulo:    10,
		EliminationMinNotes:  5,
		EliminationThreshold: 0.58,
		ShortlistSize:        10,
		MinRemainingThemes:   3,
		StatsMinInterval:     5 * time.Second,
		TournamentPoints:     []int{15, 12, 10, 8, 6, 5, 4, 3, 2, 1},
	}
}

// PublishedRatingVotes is the number of contributing votes a category needs
// before its average is published.
func (s Settings) PublishedRatingVotes() int {
	return int(math.Floor(0.8 * float64(s.RequiredEntryVotes)))
}

// MaxTimedEliminations is how many shortlist themes the countdown may remove.
func (s Settings) MaxTimedEliminations() int {
	return max(0, s.ShortlistSize-s.MinRemainingThemes)
}
