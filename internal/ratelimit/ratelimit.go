// Package ratelimit throttles expensive generation endpoints with a Redis
// fixed-window counter keyed by caller identity.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "mirror:ratelimit:"

// Limiter counts requests per caller per one-minute window.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	logger *zap.Logger
}

// New connects to Redis and returns a Limiter allowing limit requests per
// minute per key.
func New(redisURL string, limit int, logger *zap.Logger) (*Limiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Limiter{rdb: rdb, limit: limit, logger: logger}, nil
}

// Allow reports whether the caller identified by key may proceed. A Redis
// failure fails open: throttling is a guard, not a gate, and generation
// should keep working through a cache outage.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	window := time.Now().UTC().Format("200601021504")
	redisKey := keyPrefix + key + ":" + window

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request",
			zap.String("key", key), zap.Error(err))
		return true
	}
	if count == 1 {
		// First hit in this window owns the expiry. NX keeps a retried
		// INCR from extending the window.
		if err := l.rdb.ExpireNX(ctx, redisKey, 2*time.Minute).Err(); err != nil {
			l.logger.Warn("rate limit expiry set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return count <= int64(l.limit)
}

// Close releases the Redis connection.
func (l *Limiter) Close() error {
	return l.rdb.Close()
}
