package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces cache entries so the tier can share a Redis database
// with other tooling.
const keyPrefix = "stresslens:cache:"

// Redis is the shared tier. It takes redis.Cmdable so tests can hand in a
// mock client.
type Redis struct {
	client redis.Cmdable
}

// NewRedis creates the Redis tier around an existing client.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

// Get returns the cached value or ErrNotFound when the key is absent.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores value under key with ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
