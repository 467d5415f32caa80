package domain

import "time"

type TournamentEntry struct {
	EventID  int64
	EntryID  int64
	Ordering int
}

// EntryScore is the contribution of one tournament game to a user's total.
type EntryScore struct {
	Score   int `json:"score"`
	Ranking int `json:"ranking"`
}

type TournamentScore struct {
	EventID     int64
	UserID      int64
	Score       int
	EntryScores map[int64]EntryScore
	Ranking     *int
	UpdatedAt   time.Time
}
