package theme

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

func TestVoteActive_UpThenDownSameUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())
	eventID := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})
	idea := f.seedTheme(t, eventID, "Portals", domain.ThemeActive, 0, 0)

	require.NoError(t, f.engine.VoteActive(ctx, 7, eventID, idea.ID, 1))
	baseline := f.theme(t, idea.ID)

	require.NoError(t, f.engine.VoteActive(ctx, 8, eventID, idea.ID, 1))
	require.NoError(t, f.engine.VoteActive(ctx, 8, eventID, idea.ID, -1))

	got := f.theme(t, idea.ID)
	assert.Equal(t, baseline.Score-1, got.Score)
	assert.Equal(t, 2, got.Notes)
	assert.InDelta(t, 0.0, got.NormalizedScore, 1e-9)

	history, err := f.engine.VoteHistory(ctx, eventID, 8)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Score)
	assert.Equal(t, -1, history[1].Score)
}

func TestVoteActive_UpdatesWilsonBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())
	eventID := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})
	idea := f.seedTheme(t, eventID, "Rhythm", domain.ThemeActive, 0, 0)

	for user := int64(1); user <= 10; user++ {
		require.NoError(t, f.engine.VoteActive(ctx, user, eventID, idea.ID, 1))
	}

	got := f.theme(t, idea.ID)
	low, high := WilsonBounds(10, 10)
	assert.InDelta(t, low, got.RatingShortlist, 1e-9)
	assert.InDelta(t, high, got.RatingElimination, 1e-9)
	assert.InDelta(t, 1.0, got.NormalizedScore, 1e-9)
}

func TestVoteActive_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())
	eventID := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})
	otherEvent := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})
	foreign := f.seedTheme(t, otherEvent, "Elsewhere", domain.ThemeActive, 0, 0)

	err := f.engine.VoteActive(ctx, 1, eventID, 12345, 1)
	require.ErrorIs(t, err, domain.ErrThemeNotFound)
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))

	err = f.engine.VoteActive(ctx, 1, eventID, foreign.ID, 1)
	require.ErrorIs(t, err, domain.ErrThemeNotFound)

	err = f.engine.VoteActive(ctx, 1, eventID, foreign.ID, 2)
	assert.True(t, apperrors.IsType(err, apperrors.TypeValidation))
}

func TestVoteActive_IgnoredWhenNotApplicable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())
	voting := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})
	ideas := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseIdeas})
	out := f.seedTheme(t, voting, "Gone", domain.ThemeOut, 3, -3)
	early := f.seedTheme(t, ideas, "Early", domain.ThemeActive, 0, 0)

	require.NoError(t, f.engine.VoteActive(ctx, 1, voting, out.ID, 1))
	require.NoError(t, f.engine.VoteActive(ctx, 1, ideas, early.ID, 1))

	assert.Equal(t, -3, f.theme(t, out.ID).Score)
	assert.Equal(t, 0, f.theme(t, early.ID).Notes)
}

func TestVoteActive_NotesBoundScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())
	eventID := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})
	idea := f.seedTheme(t, eventID, "Chaos", domain.ThemeActive, 0, 0)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		score := 1
		if rng.IntN(2) == 0 {
			score = -1
		}
		require.NoError(t, f.engine.VoteActive(ctx, rng.Int64N(15), eventID, idea.ID, score))

		got := f.theme(t, idea.ID)
		assert.GreaterOrEqual(t, got.Notes, max(got.Score, -got.Score))
		assert.GreaterOrEqual(t, got.RatingShortlist, 0.0)
		assert.LessOrEqual(t, got.RatingElimination, 1.0)
	}
}

func TestVoteActive_EveryModuloVoteRunsElimination(t *testing.T) {
	ctx := context.Background()
	settings := testSettings()
	settings.EliminationModulo = 3
	f := newFixture(t, settings)
	eventID := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})

	weak := f.seedTheme(t, eventID, "Weak", domain.ThemeActive, 20, -20)
	for _, title := range []string{"A", "B", "C"} {
		f.seedTheme(t, eventID, title, domain.ThemeActive, 10, 10)
	}
	target := f.seedTheme(t, eventID, "Target", domain.ThemeActive, 0, 0)

	require.NoError(t, f.engine.VoteActive(ctx, 1, eventID, target.ID, 1))
	require.NoError(t, f.engine.VoteActive(ctx, 2, eventID, target.ID, 1))
	assert.Equal(t, domain.ThemeActive, f.theme(t, weak.ID).Status, "no pass before the third vote")

	require.NoError(t, f.engine.VoteActive(ctx, 3, eventID, target.ID, 1))
	assert.Equal(t, domain.ThemeOut, f.theme(t, weak.ID).Status)
}

func TestEliminationPass_OrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())
	eventID := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})

	a := f.seedTheme(t, eventID, "A", domain.ThemeActive, 20, -20)
	b := f.seedTheme(t, eventID, "B", domain.ThemeActive, 10, -10)
	c := f.seedTheme(t, eventID, "C", domain.ThemeActive, 10, -10)
	d := f.seedTheme(t, eventID, "D", domain.ThemeActive, 10, 10)
	e := f.seedTheme(t, eventID, "E", domain.ThemeActive, 10, 10)
	fresh := f.seedTheme(t, eventID, "F", domain.ThemeActive, 2, -2)

	removed, err := f.engine.EliminationPass(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, c.ID}, removed, "lowest first, newest wins ties")

	assert.Equal(t, domain.ThemeActive, f.theme(t, b.ID).Status)
	assert.Equal(t, domain.ThemeActive, f.theme(t, d.ID).Status)
	assert.Equal(t, domain.ThemeActive, f.theme(t, e.ID).Status)
	assert.Equal(t, domain.ThemeActive, f.theme(t, fresh.ID).Status, "too few notes to be eligible")

	gotA := f.theme(t, a.ID)
	require.NotNil(t, gotA.Ranking)
	assert.InDelta(t, 5.0/6.0, *gotA.Ranking, 1e-9)
	gotC := f.theme(t, c.ID)
	require.NotNil(t, gotC.Ranking)
	assert.InDelta(t, 0.5, *gotC.Ranking, 1e-9)
}

func TestEliminationPass_RespectsThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())
	eventID := f.seedEvent(t, domain.Event{ThemePhase: domain.ThemePhaseVoting})

	for _, title := range []string{"A", "B", "C", "D", "E"} {
		f.seedTheme(t, eventID, title, domain.ThemeActive, 10, -6)
	}

	removed, err := f.engine.EliminationPass(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, removed, "upper bound above the threshold keeps every idea")
}
