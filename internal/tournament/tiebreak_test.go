package tournament

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/jamscore/internal/domain"
)

func TestTieBreakScore(t *testing.T) {
	assert.Equal(t, int64(0), TieBreakScore(nil))
	assert.Equal(t, int64(1_000_000_000), TieBreakScore(map[int64]domain.EntryScore{1: {Score: 15, Ranking: 1}}))
	assert.Equal(t, int64(110_000_001), TieBreakScore(map[int64]domain.EntryScore{
		1: {Score: 12, Ranking: 2},
		2: {Score: 10, Ranking: 3},
		3: {Score: 1, Ranking: 10},
		4: {Score: 0, Ranking: 11},
	}))
}

func TestCompareScores_StrictOrder(t *testing.T) {
	order := []domain.TournamentEntry{{EntryID: 10, Ordering: 1}, {EntryID: 20, Ordering: 2}}
	row := func(user int64, score int, ranks map[int64]int) *domain.TournamentScore {
		es := make(map[int64]domain.EntryScore, len(ranks))
		for id, r := range ranks {
			es[id] = domain.EntryScore{Score: score, Ranking: r}
		}
		return &domain.TournamentScore{UserID: user, Score: score, EntryScores: es}
	}

	rows := []*domain.TournamentScore{
		row(5, 20, map[int64]int{10: 2, 20: 1}), // same weight as user 4, worse on game 10
		row(4, 20, map[int64]int{10: 1, 20: 2}),
		row(3, 20, map[int64]int{10: 3}),        // lower weight
		row(9, 25, map[int64]int{10: 9}),        // higher score wins outright
		row(2, 20, map[int64]int{10: 3}),        // identical to user 3, lower id first
	}
	slices.SortFunc(rows, compareScores(order))

	var users []int64
	for _, r := range rows {
		users = append(users, r.UserID)
	}
	assert.Equal(t, []int64{9, 4, 5, 2, 3}, users)
}
