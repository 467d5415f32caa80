// Package memory provides in-process implementations of the scoring store,
// cache and throttle for single-instance deployments and tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jamscore/internal/domain"
)

type themeVoteKey struct{ userID, themeID int64 }
type entryVoteKey struct{ userID, entryID int64 }
type eventKey struct{ eventID, id int64 }

// state holds stored values, never pointers handed to callers. Writes always
// store a fresh clone, so a copy of a map is a consistent snapshot of it.
type state struct {
	nextID            int64
	events            map[int64]domain.Event
	counters          map[int64]int64
	streamers         map[int64][]int64
	themes            map[int64]domain.ThemeIdea
	themeVotes        map[themeVoteKey]domain.ThemeVote
	history           []domain.ThemeVoteRecord
	entries           map[int64]domain.Entry
	entryVotes        map[entryVoteKey]domain.EntryVote
	comments          []domain.Comment
	tournamentEntries map[eventKey]domain.TournamentEntry
	tournamentScores  map[eventKey]domain.TournamentScore
	highScores        map[int64]domain.HighScore
}

func newState() *state {
	return &state{
		events:            make(map[int64]domain.Event),
		counters:          make(map[int64]int64),
		streamers:         make(map[int64][]int64),
		themes:            make(map[int64]domain.ThemeIdea),
		themeVotes:        make(map[themeVoteKey]domain.ThemeVote),
		entries:           make(map[int64]domain.Entry),
		entryVotes:        make(map[entryVoteKey]domain.EntryVote),
		tournamentEntries: make(map[eventKey]domain.TournamentEntry),
		tournamentScores:  make(map[eventKey]domain.TournamentScore),
		highScores:        make(map[int64]domain.HighScore),
	}
}

// table names one collection of state for copy-on-write.
type table uint16

const (
	tblEvents table = 1 << iota
	tblCounters
	tblStreamers
	tblThemes
	tblThemeVotes
	tblHistory
	tblEntries
	tblEntryVotes
	tblComments
	tblTournamentEntries
	tblTournamentScores
	tblHighScores
)

// own gives the transaction a private copy of each table before its first
// write. Tables the transaction never writes stay shared with the live state.
func (s *state) own(owned *table, tables table) {
	todo := tables &^ *owned
	if todo == 0 {
		return
	}
	*owned |= todo
	if todo&tblEvents != 0 {
		s.events = maps.Clone(s.events)
	}
	if todo&tblCounters != 0 {
		s.counters = maps.Clone(s.counters)
	}
	if todo&tblStreamers != 0 {
		s.streamers = maps.Clone(s.streamers)
	}
	if todo&tblThemes != 0 {
		s.themes = maps.Clone(s.themes)
	}
	if todo&tblThemeVotes != 0 {
		s.themeVotes = maps.Clone(s.themeVotes)
	}
	if todo&tblHistory != 0 {
		s.history = slices.Clip(s.history)
	}
	if todo&tblEntries != 0 {
		s.entries = maps.Clone(s.entries)
	}
	if todo&tblEntryVotes != 0 {
		s.entryVotes = maps.Clone(s.entryVotes)
	}
	if todo&tblComments != 0 {
		s.comments = slices.Clip(s.comments)
	}
	if todo&tblTournamentEntries != 0 {
		s.tournamentEntries = maps.Clone(s.tournamentEntries)
	}
	if todo&tblTournamentScores != 0 {
		s.tournamentScores = maps.Clone(s.tournamentScores)
	}
	if todo&tblHighScores != 0 {
		s.highScores = maps.Clone(s.highScores)
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store serializes all transactions behind one mutex. InTx works on a
// shallow snapshot that replaces the live state only when fn succeeds; a
// table is copied on its first write, so a transaction costs the size of the
// tables it writes rather than the whole store.
type Store struct {
	mu    sync.RWMutex
	st    *state
	clock clockwork.Clock
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{st: newState(), clock: clock}
}

func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := *s.st
	if err := fn(&tx{st: &work, clock: s.clock}); err != nil {
		return err
	}
	s.st = &work
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&tx{st: s.st, clock: s.clock, readOnly: true})
}

type tx struct {
	st       *state
	clock    clockwork.Clock
	readOnly bool
	owned    table
}

func (t *tx) Events() domain.EventRepository { return eventRepo{t} }
func (t *tx) Themes() domain.ThemeRepository { return themeRepo{t} }
func (t *tx) Entries() domain.EntryRepository { return entryRepo{t} }
func (t *tx) Comments() domain.CommentRepository { return commentRepo{t} }
func (t *tx) Tournaments() domain.TournamentRepository { return tournamentRepo{t} }
func (t *tx) HighScores() domain.HighScoreRepository { return highScoreRepo{t} }

// writable rejects writes in View and otherwise takes ownership of the
// tables about to be written.
func (t *tx) writable(tables table) error {
	if t.readOnly {
		return domain.ErrReadOnly
	}
	t.st.own(&t.owned, tables)
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePtrs[T any](ps []*T) []*T {
	if ps == nil {
		return nil
	}
	out := make([]*T, len(ps))
	for i, p := range ps {
		out[i] = clonePtr(p)
	}
	return out
}

func sortedValues[K comparable, V any](m map[K]V, keep func(V) bool, less func(a, b V) int) []V {
	var out []V
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, less)
	return out
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
