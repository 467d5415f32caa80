package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/pscheid92/jamscore/internal/domain"
)

type entryRepo struct{ t *tx }

func cloneEntry(e domain.Entry) domain.Entry {
	e.TeamUserIDs = slices.Clone(e.TeamUserIDs)
	e.OptOuts = slices.Clone(e.OptOuts)
	e.Ratings = clonePtrs(e.Ratings)
	e.Rankings = clonePtrs(e.Rankings)
	return e
}

func cloneEntryVote(v domain.EntryVote) domain.EntryVote {
	v.Votes = slices.Clone(v.Votes)
	return v
}

func byVoteKey(a, b domain.EntryVote) int {
	return cmp.Or(cmp.Compare(a.EntryID, b.EntryID), cmp.Compare(a.UserID, b.UserID))
}

func (r entryRepo) Create(_ context.Context, e *domain.Entry) error {
	if err := r.t.writable(tblEntries); err != nil {
		return err
	}
	e.ID = r.t.st.id()
	r.t.st.entries[e.ID] = cloneEntry(*e)
	return nil
}

func (r entryRepo) GetByID(_ context.Context, id int64) (*domain.Entry, error) {
	e, ok := r.t.st.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	out := cloneEntry(e)
	return &out, nil
}

func (r entryRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Entry, error) {
	return r.GetByID(ctx, id)
}

func (r entryRepo) FindByUser(_ context.Context, eventID, userID int64) (*domain.Entry, error) {
	entries := sortedValues(r.t.st.entries,
		func(e domain.Entry) bool { return e.EventID == eventID && e.IsTeamMember(userID) },
		func(a, b domain.Entry) int { return cmp.Compare(a.ID, b.ID) })
	if len(entries) == 0 {
		return nil, nil
	}
	out := cloneEntry(entries[0])
	return &out, nil
}

func (r entryRepo) ListByEvent(_ context.Context, eventID int64) ([]*domain.Entry, error) {
	entries := sortedValues(r.t.st.entries,
		func(e domain.Entry) bool { return e.EventID == eventID },
		func(a, b domain.Entry) int { return cmp.Compare(a.ID, b.ID) })

	out := make([]*domain.Entry, len(entries))
	for i, e := range entries {
		c := cloneEntry(e)
		out[i] = &c
	}
	return out, nil
}

func (r entryRepo) ListByEventForUpdate(ctx context.Context, eventID int64) ([]*domain.Entry, error) {
	return r.ListByEvent(ctx, eventID)
}

func (r entryRepo) Update(_ context.Context, e *domain.Entry) error {
	if err := r.t.writable(tblEntries); err != nil {
		return err
	}
	if _, ok := r.t.st.entries[e.ID]; !ok {
		return domain.ErrEntryNotFound
	}
	r.t.st.entries[e.ID] = cloneEntry(*e)
	return nil
}

func (r entryRepo) GetVote(_ context.Context, userID, entryID int64) (*domain.EntryVote, error) {
	v, ok := r.t.st.entryVotes[entryVoteKey{userID, entryID}]
	if !ok {
		return nil, nil
	}
	out := cloneEntryVote(v)
	return &out, nil
}

func (r entryRepo) UpsertVote(_ context.Context, v domain.EntryVote) error {
	if err := r.t.writable(tblEntryVotes); err != nil {
		return err
	}
	r.t.st.entryVotes[entryVoteKey{v.UserID, v.EntryID}] = cloneEntryVote(v)
	return nil
}

func (r entryRepo) DeleteVote(_ context.Context, userID, entryID int64) error {
	if err := r.t.writable(tblEntryVotes); err != nil {
		return err
	}
	delete(r.t.st.entryVotes, entryVoteKey{userID, entryID})
	return nil
}

func (r entryRepo) ListVotesForEntry(_ context.Context, entryID int64) ([]domain.EntryVote, error) {
	votes := sortedValues(r.t.st.entryVotes,
		func(v domain.EntryVote) bool { return v.EntryID == entryID },
		byVoteKey)
	for i := range votes {
		votes[i] = cloneEntryVote(votes[i])
	}
	return votes, nil
}

func (r entryRepo) ListVotesByUsers(_ context.Context, eventID int64, userIDs []int64) ([]domain.EntryVote, error) {
	users := idSet(userIDs)
	votes := sortedValues(r.t.st.entryVotes,
		func(v domain.EntryVote) bool {
			_, ok := users[v.UserID]
			return ok && v.EventID == eventID
		},
		byVoteKey)
	for i := range votes {
		votes[i] = cloneEntryVote(votes[i])
	}
	return votes, nil
}

type commentRepo struct{ t *tx }

func (r commentRepo) Save(_ context.Context, c domain.Comment) error {
	if err := r.t.writable(tblComments); err != nil {
		return err
	}
	r.t.st.comments = append(r.t.st.comments, c)
	return nil
}

func (r commentRepo) ListForEntry(_ context.Context, entryID int64) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range r.t.st.comments {
		if c.EntryID == entryID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r commentRepo) ListByUsers(_ context.Context, eventID int64, userIDs []int64) ([]domain.Comment, error) {
	users := idSet(userIDs)
	var out []domain.Comment
	for _, c := range r.t.st.comments {
		if _, ok := users[c.UserID]; ok && c.EventID == eventID {
			out = append(out, c)
		}
	}
	return out, nil
}
