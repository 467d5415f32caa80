package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1024, cfg.WorkerQueueSize)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 30*time.Second, cfg.EliminationTick)
	assert.Equal(t, 90*time.Second, cfg.LeaseTTL)
	assert.InDelta(t, 20, cfg.QueryRateLimit, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.StatsMinInterval)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_ScoringOverrides(t *testing.T) {
	t.Setenv("SCORING_SHORTLIST_SIZE", "8")
	t.Setenv("SCORING_MIN_REMAINING_THEMES", "2")
	t.Setenv("SCORING_ELIMINATION_THRESHOLD", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, 8, s.ShortlistSize)
	assert.Equal(t, 2, s.MinRemainingThemes)
	assert.InDelta(t, 0.5, s.EliminationThreshold, 1e-9)
	assert.Equal(t, 10, s.RequiredEntryVotes)
}

func TestSettings_ZeroOverridesKept(t *testing.T) {
	t.Setenv("SCORING_THEME_IDEAS_REQUIRED", "0")
	t.Setenv("SCORING_ELIMINATION_MIN_NOTES", "0")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Zero(t, s.ThemeIdeasRequired)
	assert.Zero(t, s.EliminationMinNotes)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero queue", "WORKER_QUEUE_SIZE", "0", "WORKER_QUEUE_SIZE must be at least 1"},
		{"zero workers", "WORKER_COUNT", "0", "WORKER_COUNT must be at least 1"},
		{"zero tick", "ELIMINATION_TICK", "0s", "ELIMINATION_TICK must be positive"},
		{"lease shorter than tick", "LEASE_TTL", "10s", "LEASE_TTL must be longer than ELIMINATION_TICK"},
		{"negative rate limit", "QUERY_RATE_LIMIT", "-1", "QUERY_RATE_LIMIT must not be negative"},
		{"threshold above one", "SCORING_ELIMINATION_THRESHOLD", "1.5", "SCORING_ELIMINATION_THRESHOLD must be between 0 and 1"},
		{"negative ideas required", "SCORING_THEME_IDEAS_REQUIRED", "-1", "SCORING_THEME_IDEAS_REQUIRED must not be negative"},
		{"negative min notes", "SCORING_ELIMINATION_MIN_NOTES", "-1", "SCORING_ELIMINATION_MIN_NOTES must not be negative"},
		{"zero shortlist", "SCORING_SHORTLIST_SIZE", "0", "SCORING_SHORTLIST_SIZE must be at least 1"},
		{"floor above shortlist", "SCORING_MIN_REMAINING_THEMES", "11", "SCORING_MIN_REMAINING_THEMES must be between 0 and 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
