package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/jamscore/internal/domain"
	"github.com/pscheid92/jamscore/internal/rating"
	"github.com/pscheid92/jamscore/internal/tournament"
)

type fakeQueries struct {
	shortlist   []*domain.ThemeIdea
	history     []domain.ThemeVoteRecord
	rankings    []rating.RankedEntry
	standings   []tournament.Standing
	highScores  []*domain.HighScore
	err         error
	lastEventID int64
	lastUserID  int64
	lastDiv     domain.Division
	lastCat     int
}

func (f *fakeQueries) Shortlist(_ context.Context, eventID int64) ([]*domain.ThemeIdea, error) {
	f.lastEventID = eventID
	return f.shortlist, f.err
}

func (f *fakeQueries) VoteHistory(_ context.Context, eventID, userID int64) ([]domain.ThemeVoteRecord, error) {
	f.lastEventID, f.lastUserID = eventID, userID
	return f.history, f.err
}

func (f *fakeQueries) Rankings(_ context.Context, eventID int64, division domain.Division, category int) ([]rating.RankedEntry, error) {
	f.lastEventID, f.lastDiv, f.lastCat = eventID, division, category
	return f.rankings, f.err
}

func (f *fakeQueries) Leaderboard(_ context.Context, eventID int64) ([]tournament.Standing, error) {
	f.lastEventID = eventID
	return f.standings, f.err
}

func (f *fakeQueries) Ranking(_ context.Context, entryID int64) ([]*domain.HighScore, error) {
	f.lastEventID = entryID
	return f.highScores, f.err
}

func newTestServer(t *testing.T, q *fakeQueries, opts Options) *Server {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = clockwork.NewFakeClock()
	}
	return NewServer(Queries{Themes: q, Rankings: q, Leaderboard: q, HighScores: q}, opts)
}

func doGet(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "1.2.3.4:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}
