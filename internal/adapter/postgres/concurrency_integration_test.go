package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/pscheid92/jamscore/internal/adapter/memory"
	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/highscore"
	"github.com/pscheid92/jamscore/internal/rating"
	"github.com/pscheid92/jamscore/internal/theme"
)

type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, domain.Task) bool { return true }

func newThemeEngine(s *Store, settings domain.Settings) *theme.Engine {
	clock := clockwork.NewRealClock()
	return theme.NewEngine(s, discardQueue{}, memory.NewThrottle(clock), clock, settings, nil)
}

func createThemes(t *testing.T, s *Store, eventID int64, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, n)
	require.NoError(t, s.InTx(ctx, func(tx domain.Tx) error {
		for i := range n {
			title := fmt.Sprintf("Theme %d", i)
			idea := &domain.ThemeIdea{EventID: eventID, SubmitterID: 1000, Title: title, Slug: theme.Slugify(title),
				Status: domain.ThemeActive, RatingElimination: 1}
			if err := tx.Themes().Create(ctx, idea); err != nil {
				return err
			}
			ids[i] = idea.ID
		}
		return nil
	}))
	return ids
}

func TestConcurrency_EliminationKeepsVoteTallies(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	eventID := createEvent(t, s)
	themeIDs := createThemes(t, s, eventID, 6)

	settings := domain.DefaultSettings()
	settings.ShortlistSize = 2
	settings.EliminationMinNotes = 1
	settings.EliminationThreshold = 1
	settings.EliminationModulo = 7
	engine := newThemeEngine(s, settings)

	var g errgroup.Group
	for user := range int64(30) {
		g.Go(func() error {
			for i, id := range themeIDs {
				score := 1
				if (int(user)+i)%3 == 0 {
					score = -1
				}
				if err := engine.VoteActive(ctx, user+1, eventID, id, score); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for range 5 {
		g.Go(func() error {
			_, err := engine.EliminationPass(ctx, eventID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	rows, err := testPool.Query(ctx, `
		SELECT t.id, t.notes, t.score, COUNT(v.user_id), COALESCE(SUM(v.score), 0)
		FROM theme_ideas t LEFT JOIN theme_votes v ON v.theme_id = t.id
		WHERE t.event_id = $1 GROUP BY t.id`, eventID)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id, notes, score, votes, sum int64
		require.NoError(t, rows.Scan(&id, &notes, &score, &votes, &sum))
		assert.Equal(t, votes, notes, "notes of theme %d", id)
		assert.Equal(t, sum, score, "score of theme %d", id)
	}
	require.NoError(t, rows.Err())
}

func TestConcurrency_TimedEliminationKeepsBallots(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	eventID := createEvent(t, s)
	themeIDs := createThemes(t, s, eventID, 5)

	require.NoError(t, s.InTx(ctx, func(tx domain.Tx) error {
		for _, id := range themeIDs {
			th, err := tx.Themes().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			th.Status = domain.ThemeShortlist
			if err := tx.Themes().Update(ctx, th); err != nil {
				return err
			}
		}
		ev, err := tx.Events().GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		ev.ThemePhase = domain.ThemePhaseShortlist
		ev.ShortlistElimination = domain.ShortlistElimination{
			Enabled:  true,
			NextAt:   time.Now().Add(-time.Hour),
			Interval: time.Minute,
		}
		return tx.Events().Save(ctx, ev)
	}))

	settings := domain.DefaultSettings()
	settings.ShortlistSize = 5
	settings.MinRemainingThemes = 2
	engine := newThemeEngine(s, settings)

	var g errgroup.Group
	for user := range int64(20) {
		g.Go(func() error {
			return engine.SaveShortlistVotes(ctx, user+1, eventID, themeIDs)
		})
	}
	g.Go(func() error {
		_, err := engine.RunTimedElimination(ctx, eventID)
		return err
	})
	require.NoError(t, g.Wait())

	rows, err := testPool.Query(ctx, `
		SELECT t.id, t.notes, COUNT(v.user_id)
		FROM theme_ideas t LEFT JOIN theme_votes v ON v.theme_id = t.id
		WHERE t.event_id = $1 GROUP BY t.id`, eventID)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id, notes, votes int64
		require.NoError(t, rows.Scan(&id, &notes, &votes))
		assert.Equal(t, votes, notes, "ballots of theme %d", id)
	}
	require.NoError(t, rows.Err())
}

func TestConcurrency_RankingPassKeepsKarma(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	eventID := createEvent(t, s)

	var entryID int64
	require.NoError(t, s.InTx(ctx, func(tx domain.Tx) error {
		one := 7.5
		e := &domain.Entry{EventID: eventID, Title: "Game", Division: domain.DivisionSolo, Ratings: []*float64{&one, nil}}
		err := tx.Entries().Create(ctx, e)
		entryID = e.ID
		return err
	}))

	clock := clockwork.NewRealClock()
	engine := rating.NewEngine(s, discardQueue{}, memory.NewCache(clock), clock, domain.DefaultSettings(), nil, time.Minute)

	const bumps = 20
	var g errgroup.Group
	for range bumps {
		g.Go(func() error {
			return s.InTx(ctx, func(tx domain.Tx) error {
				e, err := tx.Entries().GetForUpdate(ctx, entryID)
				if err != nil {
					return err
				}
				e.Karma++
				return tx.Entries().Update(ctx, e)
			})
		})
		g.Go(func() error { return engine.ComputeRankings(ctx, eventID) })
	}
	require.NoError(t, g.Wait())

	require.NoError(t, s.View(ctx, func(tx domain.Tx) error {
		e, err := tx.Entries().GetByID(ctx, entryID)
		require.NoError(t, err)
		assert.Equal(t, bumps, e.Karma)
		require.NotNil(t, e.Rankings[0])
		assert.Equal(t, 1, *e.Rankings[0])
		return nil
	}))
}

func TestConcurrency_FirstHighScoresGetDistinctRanks(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	eventID := createEvent(t, s)

	var entryID int64
	require.NoError(t, s.InTx(ctx, func(tx domain.Tx) error {
		e := &domain.Entry{EventID: eventID, Title: "Game", Division: domain.DivisionSolo, HighScoreType: domain.HighScoreNumber}
		err := tx.Entries().Create(ctx, e)
		entryID = e.ID
		return err
	}))

	scores := highscore.NewService(s, nil, clockwork.NewRealClock(), domain.DefaultSettings())
	const players = 12
	var g errgroup.Group
	for user := range int64(players) {
		g.Go(func() error {
			_, err := scores.Submit(ctx, entryID, user+1, fmt.Sprint(100+user))
			return err
		})
	}
	require.NoError(t, g.Wait())

	ranking, err := scores.Ranking(ctx, entryID)
	require.NoError(t, err)
	require.Len(t, ranking, players)
	for i, hs := range ranking {
		require.NotNil(t, hs.Ranking, "user %d", hs.UserID)
		assert.Equal(t, i+1, *hs.Ranking)
		assert.Equal(t, int64(players-i), hs.UserID, "higher score ranks first")
	}
}

func TestConcurrency_IdeaQuotaAndSlugs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	eventID := createEvent(t, s)
	settings := domain.DefaultSettings()
	engine := newThemeEngine(s, settings)

	var g errgroup.Group
	for batch := range 4 {
		g.Go(func() error {
			ideas := make([]theme.Idea, settings.ThemeIdeasPerUser)
			for i := range ideas {
				ideas[i] = theme.Idea{Title: fmt.Sprintf("Batch %d idea %d", batch, i)}
			}
			_, err := engine.SubmitIdeas(ctx, 1, eventID, ideas)
			return err
		})
	}
	for user := range int64(2) {
		g.Go(func() error {
			_, err := engine.SubmitIdeas(ctx, 10+user, eventID, []theme.Idea{{Title: "Deep Space"}})
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, s.View(ctx, func(tx domain.Tx) error {
		own, err := tx.Themes().ListByUser(ctx, eventID, 1)
		require.NoError(t, err)
		assert.Len(t, own, settings.ThemeIdeasPerUser)

		all, err := tx.Themes().ListByStatus(ctx, eventID)
		require.NoError(t, err)
		statuses := map[domain.ThemeStatus]int{}
		for _, th := range all {
			if th.Slug == theme.Slugify("Deep Space") {
				statuses[th.Status]++
			}
		}
		assert.Equal(t, map[domain.ThemeStatus]int{domain.ThemeActive: 1, domain.ThemeDuplicate: 1}, statuses)
		return nil
	}))
}
