package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when a user lock could not be acquired in time
var ErrLockHeld = errors.New("user lock is held by another request")

// releaseScript deletes the lock only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func lockKey(userID string) string {
	return fmt.Sprintf("lock:user:%s", userID)
}

// Locker serializes load-check-commit sequences per user across processes
type Locker struct {
	cache    *Cache
	ttl      time.Duration
	attempts uint
	delay    time.Duration
}

// NewLocker creates a Redis-backed per-user locker
func NewLocker(c *Cache, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{cache: c, ttl: ttl, attempts: 50, delay: 20 * time.Millisecond}
}

// Lock blocks until the user's lock is acquired, ctx is done, or the
// attempts run out. The returned func releases the lock.
func (l *Locker) Lock(ctx context.Context, userID string) (func(), error) {
	key := lockKey(userID)
	token := uuid.NewString()

	err := retry.Do(
		func() error {
			ok, err := l.cache.client.SetNX(ctx, key, token, l.ttl).Result()
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to acquire lock: %w", err))
			}
			if !ok {
				return ErrLockHeld
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(l.attempts),
		retry.Delay(l.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.cache.client, []string{key}, token).Err()
	}, nil
}
