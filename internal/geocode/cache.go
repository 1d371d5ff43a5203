package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Cache stores geocoding results by query key. Zero-result lookups are cached
// as empty results; errors are never cached.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Set(ctx context.Context, key string, result *Result) error
}

const redisKeyPrefix = "simplegeo:geocode:"

// RedisCache is a Cache backed by Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis instance at rawURL (redis://host:port/db)
func NewRedisCache(rawURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse cache url")
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Result, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "geocode: cache get")
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, eris.Wrap(err, "geocode: cache decode")
	}
	return &r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "geocode: cache encode")
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return eris.Wrap(err, "geocode: cache set")
	}
	return nil
}

// Close releases the Redis connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}
