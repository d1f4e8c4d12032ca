package cache

import (
	"context"
	"time"

	"github.com/openblog/backend/internal/logger"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

func New(addr string, log *logger.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info(ctx, "connected to redis", map[string]any{"addr": addr})
	return &Cache{client: client, log: log}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.log.Debug(ctx, "cache miss", map[string]any{"key": key})
		return "", false
	}
	if err != nil {
		c.log.Warn(ctx, "cache read failed", map[string]any{"key": key, "error": err.Error()})
		return "", false
	}
	c.log.Debug(ctx, "cache hit", map[string]any{"key": key})
	return val, true
}

func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache write failed", map[string]any{"key": key, "error": err.Error()})
		return err
	}
	return nil
}

// Delete removes keys, used to invalidate cached listings after writes.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn(ctx, "cache invalidation failed", map[string]any{"keys": keys, "error": err.Error()})
		return err
	}
	return nil
}

// Ping reports whether redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client exposes the underlying redis client for health checks.
func (c *Cache) Client() *redis.Client {
	return c.client
}
