package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
	"github.com/pscheid92/jamscore/internal/rating"
	"github.com/pscheid92/jamscore/internal/tournament"
)

func ptr[T any](v T) *T { return &v }

func TestShortlist(t *testing.T) {
	q := &fakeQueries{shortlist: []*domain.ThemeIdea{
		{ID: 3, Title: "Loops", Slug: "loops", Score: 42, RatingShortlist: 0.9, Ranking: ptr(1.0)},
		{ID: 5, Title: "Space", Slug: "space", Score: 17},
	}}
	rec := doGet(newTestServer(t, q, Options{}), "/api/v1/events/7/shortlist")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), q.lastEventID)
	assert.JSONEq(t, `[
		{"id":3,"title":"Loops","slug":"loops","score":42,"rating":0.9,"ranking":1},
		{"id":5,"title":"Space","slug":"space","score":17,"rating":0}
	]`, rec.Body.String())
}

func TestVoteHistory(t *testing.T) {
	castAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	q := &fakeQueries{history: []domain.ThemeVoteRecord{{UserID: 9, ThemeID: 3, EventID: 7, Score: -1, CastAt: castAt}}}
	rec := doGet(newTestServer(t, q, Options{}), "/api/v1/events/7/users/9/theme-votes")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), q.lastUserID)
	assert.JSONEq(t, `[{"theme_id":3,"score":-1,"cast_at":"2026-05-01T10:00:00Z"}]`, rec.Body.String())
}

func TestRankings_PassesDivisionAndCategory(t *testing.T) {
	q := &fakeQueries{rankings: []rating.RankedEntry{{EntryID: 4, Title: "Hop", Rating: 4.5, Rank: 1}}}
	rec := doGet(newTestServer(t, q, Options{}), "/api/v1/events/7/rankings/team/1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DivisionTeam, q.lastDiv)
	assert.Equal(t, 1, q.lastCat)
	assert.JSONEq(t, `[{"entry_id":4,"title":"Hop","rating":4.5,"rank":1}]`, rec.Body.String())
}

func TestLeaderboard(t *testing.T) {
	q := &fakeQueries{standings: []tournament.Standing{{UserID: 2, Ranking: 1, Score: 27}}}
	rec := doGet(newTestServer(t, q, Options{}), "/api/v1/events/7/leaderboard")

	require.Equal(t, http.StatusOK, rec.Code)
	var got []tournament.Standing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, q.standings, got)
}

func TestHighScores_MarksSuspended(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	q := &fakeQueries{highScores: []*domain.HighScore{
		{UserID: 1, Score: 12.5, Ranking: ptr(1), Active: true, SubmittedAt: at},
		{UserID: 2, Score: 99, Active: false, SubmittedAt: at},
	}}
	rec := doGet(newTestServer(t, q, Options{}), "/api/v1/entries/11/highscores")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(11), q.lastEventID)
	assert.JSONEq(t, `[
		{"user_id":1,"score":12.5,"ranking":1,"submitted_at":"2026-05-01T10:00:00Z"},
		{"user_id":2,"score":99,"suspended":true,"submitted_at":"2026-05-01T10:00:00Z"}
	]`, rec.Body.String())
}

func TestQueries_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantType   apperrors.ErrorType
	}{
		{"bad event id", "/api/v1/events/abc/leaderboard", nil, http.StatusBadRequest, apperrors.TypeValidation},
		{"zero event id", "/api/v1/events/0/shortlist", nil, http.StatusBadRequest, apperrors.TypeValidation},
		{"bad category", "/api/v1/events/1/rankings/solo/x", nil, http.StatusBadRequest, apperrors.TypeValidation},
		{"unknown event", "/api/v1/events/1/leaderboard",
			apperrors.ValidationError("unknown event").WithCause(domain.ErrEventNotFound), http.StatusBadRequest, apperrors.TypeValidation},
		{"missing entry", "/api/v1/entries/1/highscores",
			apperrors.NotFoundError("entry not found"), http.StatusNotFound, apperrors.TypeNotFound},
		{"storage failure", "/api/v1/events/1/shortlist",
			fmt.Errorf("failed to list shortlist: %w", assert.AnError), http.StatusInternalServerError, apperrors.TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(newTestServer(t, &fakeQueries{err: tt.err}, Options{}), tt.path)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
		})
	}
}

func TestInternalErrorsHideCause(t *testing.T) {
	q := &fakeQueries{err: fmt.Errorf("failed to list shortlist: %w", assert.AnError)}
	rec := doGet(newTestServer(t, q, Options{}), "/api/v1/events/1/shortlist")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestUnknownRoute(t *testing.T) {
	rec := doGet(newTestServer(t, &fakeQueries{}, Options{}), "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit_QueryRoutesOnly(t *testing.T) {
	srv := newTestServer(t, &fakeQueries{}, Options{RateLimit: 0.01, RateBurst: 1})

	assert.Equal(t, http.StatusOK, doGet(srv, "/api/v1/events/1/leaderboard").Code)
	limited := doGet(srv, "/api/v1/events/1/leaderboard")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), "rate limit exceeded")
	assert.Equal(t, "100", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, doGet(srv, "/health/live").Code)
}
