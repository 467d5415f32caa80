package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/jamscore/internal/domain"
)

func TestThemes_StatusQueriesAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	eventID := createEvent(t, s)

	err := s.InTx(ctx, func(tx domain.Tx) error {
		ranking := 0.75
		loops := &domain.ThemeIdea{EventID: eventID, SubmitterID: 5, Title: "Loops", Slug: "loops", Status: domain.ThemeShortlist, Ranking: &ranking}
		space := &domain.ThemeIdea{EventID: eventID, SubmitterID: 5, Title: "Space", Slug: "space", Status: domain.ThemeActive}
		require.NoError(t, tx.Themes().Create(ctx, loops))
		require.NoError(t, tx.Themes().Create(ctx, space))
		assert.False(t, loops.CreatedAt.IsZero())

		shortlist, err := tx.Themes().ListByStatus(ctx, eventID, domain.ThemeShortlist)
		require.NoError(t, err)
		require.Len(t, shortlist, 1)
		require.NotNil(t, shortlist[0].Ranking)
		assert.InDelta(t, 0.75, *shortlist[0].Ranking, 1e-9)

		all, err := tx.Themes().ListByStatus(ctx, eventID)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		mine, err := tx.Themes().ListByUser(ctx, eventID, 5)
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		exists, err := tx.Themes().ExistsSlug(ctx, eventID, "space")
		require.NoError(t, err)
		assert.True(t, exists)

		counts, err := tx.Themes().CountByStatus(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, map[domain.ThemeStatus]int{domain.ThemeShortlist: 1, domain.ThemeActive: 1}, counts)

		require.NoError(t, tx.Themes().UpsertVote(ctx, domain.ThemeVote{UserID: 9, ThemeID: space.ID, EventID: eventID, Score: 1}))
		require.NoError(t, tx.Themes().UpsertVote(ctx, domain.ThemeVote{UserID: 9, ThemeID: space.ID, EventID: eventID, Score: -1}))
		vote, err := tx.Themes().GetVote(ctx, 9, space.ID)
		require.NoError(t, err)
		require.NotNil(t, vote)
		assert.Equal(t, -1, vote.Score)

		require.NoError(t, tx.Themes().AppendVoteHistory(ctx, domain.ThemeVoteRecord{UserID: 9, ThemeID: space.ID, EventID: eventID, Score: 1}))
		require.NoError(t, tx.Themes().AppendVoteHistory(ctx, domain.ThemeVoteRecord{UserID: 9, ThemeID: space.ID, EventID: eventID, Score: -1}))
		require.NoError(t, tx.Themes().Delete(ctx, space.ID))

		vote, err = tx.Themes().GetVote(ctx, 9, space.ID)
		require.NoError(t, err)
		assert.Nil(t, vote)

		history, err := tx.Themes().ListVoteHistory(ctx, eventID, 9)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, []int{1, -1}, []int{history[0].Score, history[1].Score})

		votes, voters, err := tx.Themes().VoteTotals(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, 2, votes)
		assert.Equal(t, 1, voters)
		return nil
	})
	require.NoError(t, err)
}

func TestEntries_ScoresVotesAndComments(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	eventID := createEvent(t, s)

	err := s.InTx(ctx, func(tx domain.Tx) error {
		e := &domain.Entry{EventID: eventID, Title: "Hop", Division: domain.DivisionTeam, TeamUserIDs: []int64{1, 2}, OptOuts: []int{1}}
		require.NoError(t, tx.Entries().Create(ctx, e))

		rating, rank := 4.25, 1
		e.Ratings = []*float64{&rating, nil}
		e.Rankings = []*int{&rank, nil}
		e.Karma = 12
		require.NoError(t, tx.Entries().Update(ctx, e))

		got, err := tx.Entries().GetForUpdate(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, got.Ratings, 2)
		assert.InDelta(t, 4.25, *got.Ratings[0], 1e-9)
		assert.Nil(t, got.Ratings[1])
		assert.Equal(t, 1, *got.Rankings[0])
		assert.Equal(t, []int{1}, got.OptOuts)
		assert.Equal(t, 12, got.Karma)

		found, err := tx.Entries().FindByUser(ctx, eventID, 2)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, e.ID, found.ID)
		none, err := tx.Entries().FindByUser(ctx, eventID, 3)
		require.NoError(t, err)
		assert.Nil(t, none)

		require.NoError(t, tx.Entries().UpsertVote(ctx, domain.EntryVote{UserID: 3, EntryID: e.ID, EventID: eventID, Votes: []float64{4, 5}}))
		require.NoError(t, tx.Entries().UpsertVote(ctx, domain.EntryVote{UserID: 4, EntryID: e.ID, EventID: eventID, Votes: []float64{2, 0}}))
		votes, err := tx.Entries().ListVotesByUsers(ctx, eventID, []int64{3})
		require.NoError(t, err)
		require.Len(t, votes, 1)
		assert.Equal(t, []float64{4, 5}, votes[0].Votes)

		require.NoError(t, tx.Entries().DeleteVote(ctx, 4, e.ID))
		forEntry, err := tx.Entries().ListVotesForEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Len(t, forEntry, 1)

		require.NoError(t, tx.Comments().Save(ctx, domain.Comment{UserID: 3, EntryID: e.ID, EventID: eventID, Karma: 3}))
		require.NoError(t, tx.Comments().Save(ctx, domain.Comment{UserID: 4, EntryID: e.ID, EventID: eventID, Karma: 1}))
		comments, err := tx.Comments().ListForEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Len(t, comments, 2)
		byUser, err := tx.Comments().ListByUsers(ctx, eventID, []int64{4})
		require.NoError(t, err)
		require.Len(t, byUser, 1)
		assert.Equal(t, 1, byUser[0].Karma)
		return nil
	})
	require.NoError(t, err)
}

func TestTournaments_EntriesAndScores(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	eventID := createEvent(t, s)

	err := s.InTx(ctx, func(tx domain.Tx) error {
		require.NoError(t, tx.Tournaments().SaveEntry(ctx, domain.TournamentEntry{EventID: eventID, EntryID: 20, Ordering: 2}))
		require.NoError(t, tx.Tournaments().SaveEntry(ctx, domain.TournamentEntry{EventID: eventID, EntryID: 10, Ordering: 1}))
		require.NoError(t, tx.Tournaments().SaveEntry(ctx, domain.TournamentEntry{EventID: eventID, EntryID: 10, Ordering: 3}))

		entries, err := tx.Tournaments().ListEntries(ctx, eventID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, []int64{20, 10}, []int64{entries[0].EntryID, entries[1].EntryID})

		events, err := tx.Tournaments().ListEventIDsByEntry(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{eventID}, events)

		rank := 1
		require.NoError(t, tx.Tournaments().SaveScore(ctx, &domain.TournamentScore{
			EventID: eventID, UserID: 5, Score: 15, Ranking: &rank,
			EntryScores: map[int64]domain.EntryScore{10: {Score: 15, Ranking: 1}},
		}))
		require.NoError(t, tx.Tournaments().SaveScore(ctx, &domain.TournamentScore{EventID: eventID, UserID: 6}))

		score, err := tx.Tournaments().GetScore(ctx, eventID, 5)
		require.NoError(t, err)
		require.NotNil(t, score)
		assert.Equal(t, domain.EntryScore{Score: 15, Ranking: 1}, score.EntryScores[10])
		assert.Equal(t, 1, *score.Ranking)
		assert.False(t, score.UpdatedAt.IsZero())

		nonZero, err := tx.Tournaments().ListScores(ctx, eventID, true)
		require.NoError(t, err)
		assert.Len(t, nonZero, 1)
		all, err := tx.Tournaments().ListScores(ctx, eventID, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		return tx.Tournaments().DeleteEntry(ctx, eventID, 20)
	})
	require.NoError(t, err)
}

func TestHighScores_SaveAndQuery(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx domain.Tx) error {
		scores := []*domain.HighScore{
			{EntryID: 10, UserID: 2, Score: 5, Active: true},
			{EntryID: 11, UserID: 2, Score: 7, Active: false},
			{EntryID: 11, UserID: 1, Score: 3, Active: true},
		}
		for _, hs := range scores {
			require.NoError(t, tx.HighScores().Save(ctx, hs))
			assert.NotZero(t, hs.ID)
		}

		ids, err := tx.HighScores().ListUserIDs(ctx, []int64{10, 11})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids)

		active, err := tx.HighScores().ListActiveByUser(ctx, []int64{10, 11}, 2)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, int64(10), active[0].EntryID)

		rank := 1
		scores[2].Ranking = &rank
		scores[2].Score = 2.5
		require.NoError(t, tx.HighScores().Save(ctx, scores[2]))

		got, err := tx.HighScores().GetByUser(ctx, 11, 1)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.InDelta(t, 2.5, got.Score, 1e-9)
		assert.Equal(t, 1, *got.Ranking)

		require.NoError(t, tx.HighScores().Delete(ctx, scores[0].ID))
		byEntry, err := tx.HighScores().ListByEntry(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, byEntry)
		return nil
	})
	require.NoError(t, err)
}
