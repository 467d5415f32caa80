package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

func (s *Server) registerQueryRoutes(g *echo.Group) {
	g.GET("/events/:event/shortlist", s.handleShortlist)
	g.GET("/events/:event/users/:user/theme-votes", s.handleVoteHistory)
	g.GET("/events/:event/rankings/:division/:category", s.handleRankings)
	g.GET("/events/:event/leaderboard", s.handleLeaderboard)
	g.GET("/entries/:entry/highscores", s.handleHighScores)
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.ValidationError("invalid " + name + " id").WithField(name, c.Param(name))
	}
	return id, nil
}

func writeJSON(c echo.Context, v any) error {
	if err := c.JSON(http.StatusOK, v); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

type shortlistTheme struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	Score   int      `json:"score"`
	Rating  float64  `json:"rating"`
	Ranking *float64 `json:"ranking,omitempty"`
}

func (s *Server) handleShortlist(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	themes, err := s.queries.Themes.Shortlist(c.Request().Context(), eventID)
	if err != nil {
		return err
	}

	out := make([]shortlistTheme, len(themes))
	for i, t := range themes {
		out[i] = shortlistTheme{ID: t.ID, Title: t.Title, Slug: t.Slug, Score: t.Score, Rating: t.RatingShortlist, Ranking: t.Ranking}
	}
	return writeJSON(c, out)
}

type themeVote struct {
	ThemeID int64     `json:"theme_id"`
	Score   int       `json:"score"`
	CastAt  time.Time `json:"cast_at"`
}

func (s *Server) handleVoteHistory(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	userID, err := pathID(c, "user")
	if err != nil {
		return err
	}
	history, err := s.queries.Themes.VoteHistory(c.Request().Context(), eventID, userID)
	if err != nil {
		return err
	}

	out := make([]themeVote, len(history))
	for i, rec := range history {
		out[i] = themeVote{ThemeID: rec.ThemeID, Score: rec.Score, CastAt: rec.CastAt}
	}
	return writeJSON(c, out)
}

func (s *Server) handleRankings(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	category, err := strconv.Atoi(c.Param("category"))
	if err != nil {
		return apperrors.ValidationError("invalid category").WithField("category", c.Param("category"))
	}

	division := domain.Division(c.Param("division"))
	ranked, err := s.queries.Rankings.Rankings(c.Request().Context(), eventID, division, category)
	if err != nil {
		return err
	}
	return writeJSON(c, ranked)
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	standings, err := s.queries.Leaderboard.Leaderboard(c.Request().Context(), eventID)
	if err != nil {
		return err
	}
	return writeJSON(c, standings)
}

type highScore struct {
	UserID      int64     `json:"user_id"`
	Score       float64   `json:"score"`
	Ranking     *int      `json:"ranking,omitempty"`
	Suspended   bool      `json:"suspended,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (s *Server) handleHighScores(c echo.Context) error {
	entryID, err := pathID(c, "entry")
	if err != nil {
		return err
	}
	scores, err := s.queries.HighScores.Ranking(c.Request().Context(), entryID)
	if err != nil {
		return err
	}

	out := make([]highScore, len(scores))
	for i, hs := range scores {
		out[i] = highScore{UserID: hs.UserID, Score: hs.Score, Ranking: hs.Ranking, Suspended: !hs.Active, SubmittedAt: hs.SubmittedAt}
	}
	return writeJSON(c, out)
}
