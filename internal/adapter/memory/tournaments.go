package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/pscheid92/jamscore/internal/domain"
)

type tournamentRepo struct{ t *tx }

func cloneScore(s domain.TournamentScore) domain.TournamentScore {
	s.EntryScores = maps.Clone(s.EntryScores)
	s.Ranking = clonePtr(s.Ranking)
	return s
}

func (r tournamentRepo) ListEntries(_ context.Context, eventID int64) ([]domain.TournamentEntry, error) {
	return sortedValues(r.t.st.tournamentEntries,
		func(te domain.TournamentEntry) bool { return te.EventID == eventID },
		func(a, b domain.TournamentEntry) int {
			return cmp.Or(cmp.Compare(a.Ordering, b.Ordering), cmp.Compare(a.EntryID, b.EntryID))
		}), nil
}

func (r tournamentRepo) ListEventIDsByEntry(_ context.Context, entryID int64) ([]int64, error) {
	var ids []int64
	for k := range r.t.st.tournamentEntries {
		if k.id == entryID {
			ids = append(ids, k.eventID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r tournamentRepo) SaveEntry(_ context.Context, te domain.TournamentEntry) error {
	if err := r.t.writable(tblTournamentEntries); err != nil {
		return err
	}
	r.t.st.tournamentEntries[eventKey{te.EventID, te.EntryID}] = te
	return nil
}

func (r tournamentRepo) DeleteEntry(_ context.Context, eventID, entryID int64) error {
	if err := r.t.writable(tblTournamentEntries); err != nil {
		return err
	}
	key := eventKey{eventID, entryID}
	if _, ok := r.t.st.tournamentEntries[key]; !ok {
		return domain.ErrTournamentEntryNotFound
	}
	delete(r.t.st.tournamentEntries, key)
	return nil
}

func (r tournamentRepo) GetScore(_ context.Context, eventID, userID int64) (*domain.TournamentScore, error) {
	s, ok := r.t.st.tournamentScores[eventKey{eventID, userID}]
	if !ok {
		return nil, nil
	}
	out := cloneScore(s)
	return &out, nil
}

func (r tournamentRepo) ListScores(_ context.Context, eventID int64, nonZeroOnly bool) ([]*domain.TournamentScore, error) {
	scores := sortedValues(r.t.st.tournamentScores,
		func(s domain.TournamentScore) bool { return s.EventID == eventID && (!nonZeroOnly || s.Score != 0) },
		func(a, b domain.TournamentScore) int { return cmp.Compare(a.UserID, b.UserID) })

	out := make([]*domain.TournamentScore, len(scores))
	for i, s := range scores {
		c := cloneScore(s)
		out[i] = &c
	}
	return out, nil
}

func (r tournamentRepo) SaveScore(_ context.Context, s *domain.TournamentScore) error {
	if err := r.t.writable(tblTournamentScores); err != nil {
		return err
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = r.t.clock.Now()
	}
	r.t.st.tournamentScores[eventKey{s.EventID, s.UserID}] = cloneScore(*s)
	return nil
}
