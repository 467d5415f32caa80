package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle_AllowsOncePerInterval(t *testing.T) {
	throttle := NewThrottle(setupTestClient(t))
	ctx := context.Background()

	ok, err := throttle.Allow(ctx, "theme-stats:1", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = throttle.Allow(ctx, "theme-stats:1", 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = throttle.Allow(ctx, "theme-stats:2", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	assert.Eventually(t, func() bool {
		ok, err := throttle.Allow(ctx, "theme-stats:1", 200*time.Millisecond)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond)
}
