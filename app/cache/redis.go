package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on top of Redis. Every Redis failure is
// logged at debug level and reported as a miss.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis at the given address. Connection failure
// is returned to the caller so wiring can decide to run without a cache.
func NewRedisCache(addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ctx:    ctx,
	}, nil
}

func (c *RedisCache) Get(op string, params map[string]string) (string, bool) {
	key := BuildKey(op, params)

	val, err := c.client.Get(c.ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		slog.Debug("Cache get failed, treating as miss", "op", op, "error", err)
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(op string, params map[string]string, value string, ttl time.Duration) {
	key := BuildKey(op, params)

	if err := c.client.Set(c.ctx, key, value, ttl).Err(); err != nil {
		slog.Debug("Cache set failed, ignoring", "op", op, "error", err)
	}
}

func (c *RedisCache) Invalidate(op string, params map[string]string) {
	key := BuildKey(op, params)

	if err := c.client.Del(c.ctx, key).Err(); err != nil {
		slog.Debug("Cache invalidate failed, ignoring", "op", op, "error", err)
	}
}

func (c *RedisCache) InvalidateAll(op string) {
	iter := c.client.Scan(c.ctx, 0, opPattern(op), 100).Iterator()
	for iter.Next(c.ctx) {
		if err := c.client.Del(c.ctx, iter.Val()).Err(); err != nil {
			slog.Debug("Cache invalidate failed, ignoring", "op", op, "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		slog.Debug("Cache scan failed, ignoring", "op", op, "error", err)
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
