package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/pscheid92/jamscore/internal/domain"
)

type themeRepo struct{ t *tx }

func cloneTheme(t domain.ThemeIdea) domain.ThemeIdea {
	t.Ranking = clonePtr(t.Ranking)
	return t
}

func byThemeID(a, b domain.ThemeIdea) int { return cmp.Compare(a.ID, b.ID) }

func (r themeRepo) list(keep func(domain.ThemeIdea) bool) []*domain.ThemeIdea {
	themes := sortedValues(r.t.st.themes, keep, byThemeID)
	out := make([]*domain.ThemeIdea, len(themes))
	for i, t := range themes {
		c := cloneTheme(t)
		out[i] = &c
	}
	return out
}

func (r themeRepo) GetByID(_ context.Context, id int64) (*domain.ThemeIdea, error) {
	t, ok := r.t.st.themes[id]
	if !ok {
		return nil, domain.ErrThemeNotFound
	}
	out := cloneTheme(t)
	return &out, nil
}

func (r themeRepo) GetForUpdate(ctx context.Context, id int64) (*domain.ThemeIdea, error) {
	return r.GetByID(ctx, id)
}

func (r themeRepo) ListByUser(_ context.Context, eventID, userID int64) ([]*domain.ThemeIdea, error) {
	return r.list(func(t domain.ThemeIdea) bool {
		return t.EventID == eventID && t.SubmitterID == userID
	}), nil
}

func (r themeRepo) ListByStatus(_ context.Context, eventID int64, statuses ...domain.ThemeStatus) ([]*domain.ThemeIdea, error) {
	return r.list(func(t domain.ThemeIdea) bool {
		return t.EventID == eventID && (len(statuses) == 0 || slices.Contains(statuses, t.Status))
	}), nil
}

func (r themeRepo) ListByStatusForUpdate(ctx context.Context, eventID int64, statuses ...domain.ThemeStatus) ([]*domain.ThemeIdea, error) {
	return r.ListByStatus(ctx, eventID, statuses...)
}

func (r themeRepo) ExistsSlug(_ context.Context, eventID int64, slug string) (bool, error) {
	for _, t := range r.t.st.themes {
		if t.EventID == eventID && t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r themeRepo) Create(_ context.Context, t *domain.ThemeIdea) error {
	if err := r.t.writable(tblThemes); err != nil {
		return err
	}
	t.ID = r.t.st.id()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.t.clock.Now()
	}
	r.t.st.themes[t.ID] = cloneTheme(*t)
	return nil
}

func (r themeRepo) Update(_ context.Context, t *domain.ThemeIdea) error {
	if err := r.t.writable(tblThemes); err != nil {
		return err
	}
	if _, ok := r.t.st.themes[t.ID]; !ok {
		return domain.ErrThemeNotFound
	}
	r.t.st.themes[t.ID] = cloneTheme(*t)
	return nil
}

func (r themeRepo) Delete(ctx context.Context, id int64) error {
	if err := r.t.writable(tblThemes|tblThemeVotes); err != nil {
		return err
	}
	if _, ok := r.t.st.themes[id]; !ok {
		return domain.ErrThemeNotFound
	}
	delete(r.t.st.themes, id)
	return r.DeleteVotes(ctx, id)
}

func (r themeRepo) CountByStatus(_ context.Context, eventID int64) (map[domain.ThemeStatus]int, error) {
	counts := make(map[domain.ThemeStatus]int)
	for _, t := range r.t.st.themes {
		if t.EventID == eventID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (r themeRepo) GetVote(_ context.Context, userID, themeID int64) (*domain.ThemeVote, error) {
	v, ok := r.t.st.themeVotes[themeVoteKey{userID, themeID}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r themeRepo) UpsertVote(_ context.Context, v domain.ThemeVote) error {
	if err := r.t.writable(tblThemeVotes); err != nil {
		return err
	}
	r.t.st.themeVotes[themeVoteKey{v.UserID, v.ThemeID}] = v
	return nil
}

func (r themeRepo) DeleteVotes(_ context.Context, themeID int64) error {
	if err := r.t.writable(tblThemeVotes); err != nil {
		return err
	}
	for k := range r.t.st.themeVotes {
		if k.themeID == themeID {
			delete(r.t.st.themeVotes, k)
		}
	}
	return nil
}

func (r themeRepo) AppendVoteHistory(_ context.Context, rec domain.ThemeVoteRecord) error {
	if err := r.t.writable(tblHistory); err != nil {
		return err
	}
	r.t.st.history = append(r.t.st.history, rec)
	return nil
}

func (r themeRepo) ListVoteHistory(_ context.Context, eventID, userID int64) ([]domain.ThemeVoteRecord, error) {
	var out []domain.ThemeVoteRecord
	for _, rec := range r.t.st.history {
		if rec.EventID == eventID && rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r themeRepo) VoteTotals(_ context.Context, eventID int64) (int, int, error) {
	votes := 0
	voters := make(map[int64]struct{})
	for _, rec := range r.t.st.history {
		if rec.EventID == eventID {
			votes++
			voters[rec.UserID] = struct{}{}
		}
	}
	return votes, len(voters), nil
}
