package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestThrottle_OnePerInterval(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	th := NewThrottle(clock)

	ok, err := th.Allow(ctx, "theme-stats:1", 5*time.Second)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, _ = th.Allow(ctx, "theme-stats:1", 5*time.Second)
	assert.False(t, ok)

	ok, _ = th.Allow(ctx, "theme-stats:2", 5*time.Second)
	assert.True(t, ok, "keys are independent")

	clock.Advance(5 * time.Second)
	ok, _ = th.Allow(ctx, "theme-stats:1", 5*time.Second)
	assert.True(t, ok)
}
