package domain

import (
	"context"
	"time"
)

type HighScore struct {
	ID          int64
	EntryID     int64
	UserID      int64
	Score       float64
	Ranking     *int
	Active      bool
	SubmittedAt time.Time
}

// HighScoreRankingChange is raised after an entry's high scores are re-ranked.
// ImpactedUserIDs are the other users whose ranking moved within the scoring range.
type HighScoreRankingChange struct {
	EntryID         int64
	UserID          int64
	ImpactedUserIDs []int64
}

type HighScoreListener interface {
	OnHighScoreRankingChanged(ctx context.Context, change HighScoreRankingChange)
}
