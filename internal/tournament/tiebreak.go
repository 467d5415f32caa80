package tournament

import (
	"cmp"
	"math"

	"github.com/pscheid92/jamscore/internal/domain"
)

// placementWeightRanks is how many placements feed the tie-break weight.
const placementWeightRanks = 10

// TieBreakScore weights each top-10 placement by 10^(10-rank), so one gold
// outweighs any number of silvers below it in practice.
func TieBreakScore(entryScores map[int64]domain.EntryScore) int64 {
	var sum int64
	for _, es := range entryScores {
		if es.Ranking >= 1 && es.Ranking <= placementWeightRanks {
			sum += pow10(placementWeightRanks - es.Ranking)
		}
	}
	return sum
}

func pow10(n int) int64 {
	v := int64(1)
	for range n {
		v *= 10
	}
	return v
}

// compareScores orders tournament rows best first: total score, tie-break
// weight, per-game ranking in tournament order, and finally user id.
func compareScores(order []domain.TournamentEntry) func(a, b *domain.TournamentScore) int {
	return func(a, b *domain.TournamentScore) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(TieBreakScore(b.EntryScores), TieBreakScore(a.EntryScores)); c != 0 {
			return c
		}
		for _, te := range order {
			if c := cmp.Compare(gameRank(a, te.EntryID), gameRank(b, te.EntryID)); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.UserID, b.UserID)
	}
}

func gameRank(s *domain.TournamentScore, entryID int64) int {
	if es, ok := s.EntryScores[entryID]; ok && es.Ranking > 0 {
		return es.Ranking
	}
	return math.MaxInt
}
