package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window distributed rate limiter
type RedisRateLimiter struct {
	client       *redis.Client
	keyPrefix    string
	defaultLimit int
	defaultTTL   time.Duration
}

// NewRedisRateLimiter creates a limiter sharing an existing Redis client
func NewRedisRateLimiter(client *redis.Client, keyPrefix string, defaultLimit int, defaultTTL time.Duration) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	if defaultLimit <= 0 {
		defaultLimit = 60
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}

	return &RedisRateLimiter{
		client:       client,
		keyPrefix:    keyPrefix,
		defaultLimit: defaultLimit,
		defaultTTL:   defaultTTL,
	}
}

// Allow reports whether the request identified by key fits the window.
// The counter increment and expiry are a single atomic script.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if window <= 0 {
		window = r.defaultTTL
	}

	redisKey := r.keyPrefix + key

	script := redis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window_ms = tonumber(ARGV[2])

		local count = redis.call('INCR', key)
		if count == 1 then
			redis.call('PEXPIRE', key, window_ms)
		end

		if count > limit then
			return 0
		end
		return 1
	`)

	result, err := script.Run(ctx, r.client, []string{redisKey}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return result == 1, nil
}
