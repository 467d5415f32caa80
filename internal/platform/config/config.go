package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/pscheid92/jamscore/internal/domain"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	LogFile     string `env:"LOG_FILE"`

	WorkerQueueSize  int           `env:"WORKER_QUEUE_SIZE" default:"1024"`
	WorkerCount      int           `env:"WORKER_COUNT" default:"2"`
	EliminationTick  time.Duration `env:"ELIMINATION_TICK" default:"30s"`
	LeaseTTL         time.Duration `env:"LEASE_TTL" default:"90s"`
	CacheTTL         time.Duration `env:"CACHE_TTL" default:"5m"`
	StatsMinInterval time.Duration `env:"STATS_MIN_INTERVAL" default:"5s"`

	QueryRateLimit float64 `env:"QUERY_RATE_LIMIT" default:"20"`
	QueryRateBurst int     `env:"QUERY_RATE_BURST" default:"40"`

	Scoring Scoring
}

// Scoring overrides the competition constants. Values are used as given;
// ThemeIdeasRequired and EliminationMinNotes may be zero.
type Scoring struct {
	RequiredEntryVotes   int     `env:"SCORING_REQUIRED_ENTRY_VOTES" default:"10"`
	ThemeIdeasPerUser    int     `env:"SCORING_THEME_IDEAS_PER_USER" default:"3"`
	ThemeIdeasRequired   int     `env:"SCORING_THEME_IDEAS_REQUIRED" default:"10"`
	EliminationModulo    int     `env:"SCORING_ELIMINATION_MODULO" default:"10"`
	EliminationMinNotes  int     `env:"SCORING_ELIMINATION_MIN_NOTES" default:"5"`
	EliminationThreshold float64 `env:"SCORING_ELIMINATION_THRESHOLD" default:"0.58"`
	ShortlistSize        int     `env:"SCORING_SHORTLIST_SIZE" default:"10"`
	MinRemainingThemes   int     `env:"SCORING_MIN_REMAINING_THEMES" default:"3"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Settings converts the scoring overrides into engine settings.
func (c *Config) Settings() domain.Settings {
	s := domain.DefaultSettings()
	s.RequiredEntryVotes = c.Scoring.RequiredEntryVotes
	s.ThemeIdeasPerUser = c.Scoring.ThemeIdeasPerUser
	s.ThemeIdeasRequired = c.Scoring.ThemeIdeasRequired
	s.EliminationModulo = c.Scoring.EliminationModulo
	s.EliminationMinNotes = c.Scoring.EliminationMinNotes
	s.EliminationThreshold = c.Scoring.EliminationThreshold
	s.ShortlistSize = c.Scoring.ShortlistSize
	s.MinRemainingThemes = c.Scoring.MinRemainingThemes
	s.StatsMinInterval = c.StatsMinInterval
	return s
}

func validate(cfg *Config) error {
	if cfg.WorkerQueueSize < 1 {
		return errors.New("WORKER_QUEUE_SIZE must be at least 1")
	}
	if cfg.WorkerCount < 1 {
		return errors.New("WORKER_COUNT must be at least 1")
	}
	if cfg.EliminationTick <= 0 {
		return errors.New("ELIMINATION_TICK must be positive")
	}
	if cfg.LeaseTTL <= cfg.EliminationTick {
		return errors.New("LEASE_TTL must be longer than ELIMINATION_TICK")
	}
	if cfg.QueryRateLimit < 0 {
		return errors.New("QUERY_RATE_LIMIT must not be negative")
	}

	s := cfg.Scoring
	positive := map[string]int{
		"SCORING_REQUIRED_ENTRY_VOTES": s.RequiredEntryVotes,
		"SCORING_THEME_IDEAS_PER_USER": s.ThemeIdeasPerUser,
		"SCORING_ELIMINATION_MODULO":   s.EliminationModulo,
		"SCORING_SHORTLIST_SIZE":       s.ShortlistSize,
	}
	for name, value := range positive {
		if value < 1 {
			return fmt.Errorf("%s must be at least 1", name)
		}
	}

	if s.ThemeIdeasRequired < 0 {
		return errors.New("SCORING_THEME_IDEAS_REQUIRED must not be negative")
	}
	if s.EliminationMinNotes < 0 {
		return errors.New("SCORING_ELIMINATION_MIN_NOTES must not be negative")
	}
	if s.EliminationThreshold < 0 || s.EliminationThreshold > 1 {
		return errors.New("SCORING_ELIMINATION_THRESHOLD must be between 0 and 1")
	}
	if s.MinRemainingThemes < 0 || s.MinRemainingThemes > s.ShortlistSize {
		return fmt.Errorf("SCORING_MIN_REMAINING_THEMES must be between 0 and %d", s.ShortlistSize)
	}

	return nil
}
