package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Throttle keeps one token-bucket limiter per key with a burst of one.
type Throttle struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	limiters map[string]*rate.Limiter
}

func NewThrottle(clock clockwork.Clock) *Throttle {
	return &Throttle{clock: clock, limiters: make(map[string]*rate.Limiter)}
}

func (t *Throttle) Allow(_ context.Context, key string, interval time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	limit := rate.Every(interval)

	lim, ok := t.limiters[key]
	if !ok {
		lim = rate.NewLimiter(limit, 1)
		t.limiters[key] = lim
	} else if lim.Limit() != limit {
		lim.SetLimitAt(now, limit)
	}
	return lim.AllowN(now, 1), nil
}
