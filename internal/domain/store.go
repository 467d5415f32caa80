package domain

import (
	"context"
	"time"
)

// Store runs units of work against the scoring database.
//
// InTx commits when fn returns nil and rolls back otherwise. Implementations
// may run fn more than once when the backend reports a serialization
// conflict, so fn must not have side effects outside tx.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	Events() EventRepository
	Themes() ThemeRepository
	Entries() EntryRepository
	Comments() CommentRepository
	Tournaments() TournamentRepository
	HighScores() HighScoreRepository
}

type EventRepository interface {
	Create(ctx context.Context, ev *Event) error
	GetByID(ctx context.Context, id int64) (*Event, error)
	GetForUpdate(ctx context.Context, id int64) (*Event, error)
	Save(ctx context.Context, ev *Event) error
	// IncrementThemeVotes bumps the persisted per-event vote counter and returns the new value.
	IncrementThemeVotes(ctx context.Context, eventID int64) (int64, error)
	SaveThemeStats(ctx context.Context, eventID int64, stats ThemeStats) error
	ListStreamerIDs(ctx context.Context, eventID int64) ([]int64, error)
	SetStreamerIDs(ctx context.Context, eventID int64, userIDs []int64) error
	ListByThemePhase(ctx context.Context, phase ThemePhase) ([]*Event, error)
}

type ThemeRepository interface {
	GetByID(ctx context.Context, id int64) (*ThemeIdea, error)
	GetForUpdate(ctx context.Context, id int64) (*ThemeIdea, error)
	ListByUser(ctx context.Context, eventID, userID int64) ([]*ThemeIdea, error)
	ListByStatus(ctx context.Context, eventID int64, statuses ...ThemeStatus) ([]*ThemeIdea, error)
	// ListByStatusForUpdate is ListByStatus with the rows locked in id order.
	ListByStatusForUpdate(ctx context.Context, eventID int64, statuses ...ThemeStatus) ([]*ThemeIdea, error)
	ExistsSlug(ctx context.Context, eventID int64, slug string) (bool, error)
	Create(ctx context.Context, t *ThemeIdea) error
	Update(ctx context.Context, t *ThemeIdea) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context, eventID int64) (map[ThemeStatus]int, error)

	// GetVote returns (nil, nil) when the user has not voted on the theme.
	GetVote(ctx context.Context, userID, themeID int64) (*ThemeVote, error)
	UpsertVote(ctx context.Context, v ThemeVote) error
	DeleteVotes(ctx context.Context, themeID int64) error
	AppendVoteHistory(ctx context.Context, rec ThemeVoteRecord) error
	ListVoteHistory(ctx context.Context, eventID, userID int64) ([]ThemeVoteRecord, error)
	// VoteTotals counts history records and distinct voters for an event.
	VoteTotals(ctx context.Context, eventID int64) (votes, voters int, err error)
}

type EntryRepository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id int64) (*Entry, error)
	GetForUpdate(ctx context.Context, id int64) (*Entry, error)
	// FindByUser returns (nil, nil) when the user has no entry in the event.
	FindByUser(ctx context.Context, eventID, userID int64) (*Entry, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*Entry, error)
	// ListByEventForUpdate is ListByEvent with the rows locked in id order.
	ListByEventForUpdate(ctx context.Context, eventID int64) ([]*Entry, error)
	Update(ctx context.Context, e *Entry) error

	GetVote(ctx context.Context, userID, entryID int64) (*EntryVote, error)
	UpsertVote(ctx context.Context, v EntryVote) error
	DeleteVote(ctx context.Context, userID, entryID int64) error
	ListVotesForEntry(ctx context.Context, entryID int64) ([]EntryVote, error)
	ListVotesByUsers(ctx context.Context, eventID int64, userIDs []int64) ([]EntryVote, error)
}

type CommentRepository interface {
	Save(ctx context.Context, c Comment) error
	ListForEntry(ctx context.Context, entryID int64) ([]Comment, error)
	ListByUsers(ctx context.Context, eventID int64, userIDs []int64) ([]Comment, error)
}

type TournamentRepository interface {
	ListEntries(ctx context.Context, eventID int64) ([]TournamentEntry, error)
	ListEventIDsByEntry(ctx context.Context, entryID int64) ([]int64, error)
	SaveEntry(ctx context.Context, te TournamentEntry) error
	DeleteEntry(ctx context.Context, eventID, entryID int64) error

	// GetScore returns (nil, nil) when the user has no score row.
	GetScore(ctx context.Context, eventID, userID int64) (*TournamentScore, error)
	ListScores(ctx context.Context, eventID int64, nonZeroOnly bool) ([]*TournamentScore, error)
	SaveScore(ctx context.Context, s *TournamentScore) error
}

type HighScoreRepository interface {
	GetByID(ctx context.Context, id int64) (*HighScore, error)
	// GetByUser returns (nil, nil) when the user has no score on the entry.
	GetByUser(ctx context.Context, entryID, userID int64) (*HighScore, error)
	ListByEntry(ctx context.Context, entryID int64) ([]*HighScore, error)
	ListActiveByUser(ctx context.Context, entryIDs []int64, userID int64) ([]*HighScore, error)
	ListUserIDs(ctx context.Context, entryIDs []int64) ([]int64, error)
	Save(ctx context.Context, hs *HighScore) error
	// SetRanking writes only the ranking column.
	SetRanking(ctx context.Context, id int64, ranking *int) error
	Delete(ctx context.Context, id int64) error
}

// Cache stores encoded aggregates under a namespace. Purging a namespace
// drops every key in it.
type Cache interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
	Purge(ctx context.Context, namespace string) error
}

// Throttle admits at most one call per key and interval.
type Throttle interface {
	Allow(ctx context.Context, key string, interval time.Duration) (bool, error)
}
