package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKeyGuard claims idempotency keys with SETNX. A zero TTL keeps keys forever.
type RedisKeyGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisKeyGuard(client *redis.Client, prefix string, ttl time.Duration) *RedisKeyGuard {
	return &RedisKeyGuard{client: client, prefix: prefix, ttl: ttl}
}

func (g *RedisKeyGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming key %q: %w", key, err)
	}
	return ok, nil
}

func (g *RedisKeyGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("releasing key %q: %w", key, err)
	}
	return nil
}

var _ KeyGuard = (*RedisKeyGuard)(nil)
