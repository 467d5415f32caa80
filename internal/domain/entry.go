package domain

import (
	"slices"
	"time"
)

type Division string

const (
	DivisionSolo     Division = "solo"
	DivisionTeam     Division = "team"
	DivisionUnranked Division = "unranked"
)

// RankedDivisions lists the divisions that receive category rankings.
var RankedDivisions = []Division{DivisionSolo, DivisionTeam}

func (d Division) Ranked() bool { return slices.Contains(RankedDivisions, d) }

type HighScoreType string

const (
	HighScoreNumber      HighScoreType = "number"
	HighScoreNumberLower HighScoreType = "number_lower"
	HighScoreTime        HighScoreType = "time"
)

func (t HighScoreType) LowerIsBetter() bool {
	return t == HighScoreNumberLower || t == HighScoreTime
}

type Entry struct {
	ID            int64
	EventID       int64
	Title         string
	Division      Division
	TeamUserIDs   []int64
	OptOuts       []int
	HasLinks      bool
	HighScoreType HighScoreType
	Ratings       []*float64
	Rankings      []*int
	Karma         int
	RatingCount   int
}

func (e *Entry) IsTeamMember(userID int64) bool {
	return slices.Contains(e.TeamUserIDs, userID)
}

func (e *Entry) OptedOut(category int) bool {
	return slices.Contains(e.OptOuts, category)
}

type EntryVote struct {
	UserID    int64
	EntryID   int64
	EventID   int64
	Votes     []float64
	UpdatedAt time.Time
}

// Empty reports whether the vote carries no rating in any category.
func (v EntryVote) Empty() bool {
	for _, value := range v.Votes {
		if value != 0 {
			return false
		}
	}
	return true
}

// Comment is written by the discussion subsystem; the engine reads its karma.
type Comment struct {
	UserID  int64
	EntryID int64
	EventID int64
	Karma   int
}
