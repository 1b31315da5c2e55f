package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:cmd:"

// RedisStore is a Redis-backed fixed-window limiter shared across replicas.
type RedisStore struct {
	client *redis.Client
	limit  int
	period time.Duration
}

// NewRedisStore builds a limiter on the given client. Non-positive arguments
// fall back to the defaults.
func NewRedisStore(client *redis.Client, limit int, period time.Duration) *RedisStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if period <= 0 {
		period = DefaultWindowSeconds * time.Second
	}
	return &RedisStore{client: client, limit: limit, period: period}
}

// Allow increments the window counter, arming expiry on the first hit.
// Fails open on cache errors.
func (s *RedisStore) Allow(ctx context.Context, key string) (bool, error) {
	k := redisKeyPrefix + key
	cnt, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		s.client.Expire(ctx, k, s.period)
	}
	return cnt <= int64(s.limit), nil
}

// Remaining reports the budget left in the current window. Fails open.
func (s *RedisStore) Remaining(ctx context.Context, key string) (int, error) {
	cnt, err := s.client.Get(ctx, redisKeyPrefix+key).Int()
	if err == redis.Nil {
		return s.limit, nil
	}
	if err != nil {
		return s.limit, err
	}
	if left := s.limit - cnt; left > 0 {
		return left, nil
	}
	return 0, nil
}
