// Package lock implements the Distributed Status Lock: a scoped
// acquire-run-release helper backed by Redis, used to serialize the
// Deployment Orchestrator's final Service status write across concurrent
// workers.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helvetia-cloud/deploy-worker/util"
)

// ErrAcquireFailed is returned when every acquisition retry is exhausted.
var ErrAcquireFailed = errors.New("lock: failed to acquire after all retries")

const keyPrefix = "status:lock:"

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Lock acquires short-lived leases on Redis keys via SET NX PX, with
// jittered retry, and releases them with a delete-if-equal Lua script so a
// lease can never be released by a holder other than the one that set it.
type Lock struct {
	client  *redis.Client
	logger  *slog.Logger
	retries int
	baseDelay time.Duration
	jitter    time.Duration
}

// New returns a Lock backed by client, retrying acquisition up to 10 times
// with a base delay of 200ms and up to 100ms of jitter, per §4.8.
func New(client *redis.Client, logger *slog.Logger) *Lock {
	return &Lock{
		client:    client,
		logger:    logger,
		retries:   10,
		baseDelay: 200 * time.Millisecond,
		jitter:    100 * time.Millisecond,
	}
}

// WithLock acquires the lease on key for the duration of ttl, runs fn
// exactly once while holding it, and releases it on every exit path —
// including when fn panics, since the deferred release also runs while a
// panic unwinds, so the lease is never leaked.
func (l *Lock) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	fullKey := keyPrefix + key
	token := util.RandomToken()

	acquired, err := l.acquire(ctx, fullKey, token, ttl)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: key %q", ErrAcquireFailed, key)
	}

	defer l.release(context.WithoutCancel(ctx), fullKey, token)

	return fn(ctx)
}

func (l *Lock) acquire(ctx context.Context, fullKey, token string, ttl time.Duration) (bool, error) {
	for attempt := 0; attempt < l.retries; attempt++ {
		ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("lock: SETNX failed for %q: %w", fullKey, err)
		}
		if ok {
			return true, nil
		}

		delay := l.baseDelay + time.Duration(rand.Int64N(int64(l.jitter)))
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
	}
	return false, nil
}

func (l *Lock) release(ctx context.Context, fullKey, token string) {
	if err := l.client.Eval(ctx, releaseScript, []string{fullKey}, token).Err(); err != nil {
		l.logger.Warn("failed to release status lock", "key", fullKey, "error", err)
	}
}
