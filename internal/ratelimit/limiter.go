package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window rate limiter over Redis INCR/EXPIRE. It throttles
// per-key actions such as login attempts and password reset sends.
//
// Redis being unreachable must not lock every account out, so the limiter
// fails open: errors are logged and the request is allowed.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	logger *slog.Logger
}

// NewLimiter creates a limiter allowing limit requests per window for each key.
func NewLimiter(client *redis.Client, prefix string, limit int64, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow increments the counter for key and reports whether the request is
// within the window's limit.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
			slog.String("key", l.prefix),
			slog.String("error", err.Error()),
		)
		return true
	}

	// First hit in the window starts the expiry clock.
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.logger.WarnContext(ctx, "failed to set rate limit window",
				slog.String("key", l.prefix),
				slog.String("error", err.Error()),
			)
		}
	}

	return count <= l.limit
}

// Reset clears the counter for key, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	if err := l.client.Del(ctx, redisKey).Err(); err != nil {
		l.logger.WarnContext(ctx, "failed to reset rate limit counter",
			slog.String("key", l.prefix),
			slog.String("error", err.Error()),
		)
	}
}
