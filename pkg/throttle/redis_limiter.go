package throttle

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
)

// RedisLimiter implements a fixed-window limiter backed by Redis, so the
// window survives restarts and is shared across instances.
type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewRedisLimiter creates a Redis-backed fixed-window limiter
func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Allow checks and consumes one attempt for the key. The first attempt in a
// window creates the counter with the window TTL; later attempts increment it
// without extending the TTL.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	redisKey := "rate_limit:" + key

	current, err := l.client.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		if err := l.client.SetEx(ctx, redisKey, 1, l.window).Err(); err != nil {
			slog.Error("Failed to initialize rate limit window", "err", err, "key", key)
			return false, 0, securityerrors.StorageUnavailable(err, "initialize rate limit window")
		}
		return true, l.maxAttempts - 1, nil
	}
	if err != nil {
		slog.Error("Failed to read rate limit counter", "err", err, "key", key)
		return false, 0, securityerrors.StorageUnavailable(err, "read rate limit counter")
	}

	if current >= l.maxAttempts {
		return false, 0, nil
	}

	if err := l.client.Incr(ctx, redisKey).Err(); err != nil {
		slog.Error("Failed to increment rate limit counter", "err", err, "key", key)
		return false, 0, securityerrors.StorageUnavailable(err, "increment rate limit counter")
	}
	return true, l.maxAttempts - current - 1, nil
}
