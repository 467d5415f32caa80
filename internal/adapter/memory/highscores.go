package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/pscheid92/jamscore/internal/domain"
)

type highScoreRepo struct{ t *tx }

func cloneHighScore(hs domain.HighScore) domain.HighScore {
	hs.Ranking = clonePtr(hs.Ranking)
	return hs
}

func (r highScoreRepo) list(keep func(domain.HighScore) bool) []*domain.HighScore {
	scores := sortedValues(r.t.st.highScores, keep,
		func(a, b domain.HighScore) int { return cmp.Compare(a.ID, b.ID) })
	out := make([]*domain.HighScore, len(scores))
	for i, hs := range scores {
		c := cloneHighScore(hs)
		out[i] = &c
	}
	return out
}

func (r highScoreRepo) GetByID(_ context.Context, id int64) (*domain.HighScore, error) {
	hs, ok := r.t.st.highScores[id]
	if !ok {
		return nil, domain.ErrHighScoreNotFound
	}
	out := cloneHighScore(hs)
	return &out, nil
}

func (r highScoreRepo) GetByUser(_ context.Context, entryID, userID int64) (*domain.HighScore, error) {
	found := r.list(func(hs domain.HighScore) bool { return hs.EntryID == entryID && hs.UserID == userID })
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r highScoreRepo) ListByEntry(_ context.Context, entryID int64) ([]*domain.HighScore, error) {
	return r.list(func(hs domain.HighScore) bool { return hs.EntryID == entryID }), nil
}

func (r highScoreRepo) ListActiveByUser(_ context.Context, entryIDs []int64, userID int64) ([]*domain.HighScore, error) {
	entries := idSet(entryIDs)
	return r.list(func(hs domain.HighScore) bool {
		_, ok := entries[hs.EntryID]
		return ok && hs.UserID == userID && hs.Active
	}), nil
}

func (r highScoreRepo) ListUserIDs(_ context.Context, entryIDs []int64) ([]int64, error) {
	entries := idSet(entryIDs)
	var ids []int64
	for _, hs := range r.t.st.highScores {
		if _, ok := entries[hs.EntryID]; ok {
			ids = append(ids, hs.UserID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func (r highScoreRepo) Save(_ context.Context, hs *domain.HighScore) error {
	if err := r.t.writable(tblHighScores); err != nil {
		return err
	}
	if hs.ID == 0 {
		hs.ID = r.t.st.id()
	} else if _, ok := r.t.st.highScores[hs.ID]; !ok {
		return domain.ErrHighScoreNotFound
	}
	if hs.SubmittedAt.IsZero() {
		hs.SubmittedAt = r.t.clock.Now()
	}
	r.t.st.highScores[hs.ID] = cloneHighScore(*hs)
	return nil
}

func (r highScoreRepo) SetRanking(_ context.Context, id int64, ranking *int) error {
	if err := r.t.writable(tblHighScores); err != nil {
		return err
	}
	hs, ok := r.t.st.highScores[id]
	if !ok {
		return domain.ErrHighScoreNotFound
	}
	hs.Ranking = clonePtr(ranking)
	r.t.st.highScores[id] = hs
	return nil
}

func (r highScoreRepo) Delete(_ context.Context, id int64) error {
	if err := r.t.writable(tblHighScores); err != nil {
		return err
	}
	if _, ok := r.t.st.highScores[id]; !ok {
		return domain.ErrHighScoreNotFound
	}
	delete(r.t.st.highScores, id)
	return nil
}
