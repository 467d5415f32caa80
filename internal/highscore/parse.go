package highscore

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pscheid92/jamscore/internal/domain"
	apperrors "github.com/pscheid92/jamscore/internal/platform/errors"
)

// ParseScore reads a raw submission. Time scores are durations such as
// "5m00.000s" and are stored in seconds.
func ParseScore(kind domain.HighScoreType, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperrors.ValidationError("score is required")
	}

	var value float64
	switch kind {
	case domain.HighScoreTime:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, apperrors.ValidationError("invalid time score").WithField("score", raw).WithCause(err)
		}
		value = d.Seconds()
	case domain.HighScoreNumber, domain.HighScoreNumberLower:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, apperrors.ValidationError("invalid score").WithField("score", raw).WithCause(err)
		}
		value = f
	default:
		return 0, apperrors.ValidationError("entry does not accept high scores").WithField("type", kind)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, apperrors.ValidationError("score out of range").WithField("score", raw)
	}
	return value, nil
}
