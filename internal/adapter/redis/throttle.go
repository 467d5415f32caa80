package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/jamscore/internal/domain"
)

// Throttle lets one caller per key through every interval, across instances.
type Throttle struct {
	rdb goredis.Cmdable
}

var _ domain.Throttle = (*Throttle)(nil)

func NewThrottle(rdb goredis.Cmdable) *Throttle {
	return &Throttle{rdb: rdb}
}

func (t *Throttle) Allow(ctx context.Context, key string, interval time.Duration) (bool, error) {
	args := goredis.SetArgs{TTL: interval, Mode: "NX"}
	_, err := t.rdb.SetArgs(ctx, throttleKey(key), "1", args).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to set throttle: %w", err)
	}
	return true, nil
}

func throttleKey(key string) string {
	return "throttle:" + key
}
