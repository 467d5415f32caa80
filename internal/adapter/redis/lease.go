package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/jamscore/internal/domain"
)

const defaultLeaseTTL = 90 * time.Second

// Holder-checked renew and release, so an expired holder cannot touch a lease
// another instance has taken over.
var (
	renewScript = goredis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
	releaseScript = goredis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
)

// Lease is a SET NX lock with TTL identifying its holder by instance id.
type Lease struct {
	rdb        goredis.Cmdable
	key        string
	instanceID string
	ttl        time.Duration
}

var _ domain.Lease = (*Lease)(nil)

// NewLease creates a lease on "lease:<name>". A zero ttl uses 90s; it must
// exceed the interval at which the holder renews.
func NewLease(rdb goredis.Cmdable, name, instanceID string, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &Lease{
		rdb:        rdb,
		key:        "lease:" + name,
		instanceID: instanceID,
		ttl:        ttl,
	}
}

func (l *Lease) TryAcquire(ctx context.Context) (bool, error) {
	_, err := l.rdb.SetArgs(ctx, l.key, l.instanceID, goredis.SetArgs{TTL: l.ttl, Mode: "NX"}).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return true, nil
}

func (l *Lease) Renew(ctx context.Context) error {
	ok, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	if ok == 0 {
		return errors.New("lease lost")
	}
	return nil
}

func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
