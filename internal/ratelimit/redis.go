package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"notify-dispatch/internal/common/errors"
)

// RedisFixedWindow is a Limiter backed by a shared Redis counter, for
// deployments where multiple instances should draw from one budget. The
// window key is derived from the wall clock, so windows align across
// instances.
type RedisFixedWindow struct {
	client  *redis.Client
	prefix  string
	ceiling int
	window  time.Duration
	now     func() time.Time
}

// NewRedisFixedWindow creates a Redis-backed limiter.
func NewRedisFixedWindow(client *redis.Client, prefix string, ceiling int, window time.Duration) *RedisFixedWindow {
	return &RedisFixedWindow{
		client:  client,
		prefix:  prefix,
		ceiling: ceiling,
		window:  window,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (l *RedisFixedWindow) WithClock(now func() time.Time) *RedisFixedWindow {
	l.now = now
	return l
}

func (l *RedisFixedWindow) key() string {
	bucket := l.now().Unix() / int64(l.window.Seconds())
	return fmt.Sprintf("%s:%d", l.prefix, bucket)
}

func (l *RedisFixedWindow) Allow(ctx context.Context) error {
	count, err := l.client.Get(ctx, l.key()).Int()
	if err == redis.Nil {
		count = 0
	} else if err != nil {
		return fmt.Errorf("rate limit lookup: %w", err)
	}

	if count >= l.ceiling {
		return errors.NewRateLimitExceededError(l.ceiling)
	}
	return nil
}

func (l *RedisFixedWindow) Record(ctx context.Context) error {
	key := l.key()
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("rate limit increment: %w", err)
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := l.client.Expire(ctx, key, l.window*2).Err(); err != nil {
			return fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return nil
}
