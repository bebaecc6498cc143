package lock

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

const maxRetryWait = 250 * time.Millisecond

// RedisLocker provides a Redis-backed lock shared by every API replica.
type RedisLocker struct {
	R            redis.UniversalClient
	TTL          time.Duration
	RetryBackoff time.Duration
}

// WithLock implements Locker using SET NX with a random token. The TTL bounds
// how long a crashed holder can keep the key.
func (l RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return ErrNoCallback
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	token := uuid.NewString()

	for attempt := 1; ; attempt++ {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(context.WithoutCancel(ctx), key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retryWait(retry, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l RedisLocker) release(ctx context.Context, key, token string) {
	if err := l.R.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}

// retryWait doubles base per attempt with 20% jitter, capped at maxRetryWait.
func retryWait(base time.Duration, attempt int) time.Duration {
	d := base << min(max(attempt-1, 0), 8)
	d += time.Duration((rand.Float64()*0.4 - 0.2) * float64(d))
	return min(d, maxRetryWait)
}
