package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Tiered reads memory, then Redis, then disk, backfilling faster tiers on a
// hit so repeated reads stay cheap. Writes go through every tier. The Redis
// tier is optional and failing Redis never fails a read or write; the file
// tier is the durable floor.
type Tiered struct {
	memory *Memory
	redis  Store
	file   *File

	// promoteTTL caps how long a backfilled entry lives in a faster tier
	// when the origin tier cannot say how much TTL remains.
	promoteTTL time.Duration
}

// NewTiered assembles the composite. memory must not be nil; redis and file
// may be.
func NewTiered(memory *Memory, redis Store, file *File) *Tiered {
	if memory == nil {
		memory = NewMemory(0)
	}
	return &Tiered{
		memory:     memory,
		redis:      redis,
		file:       file,
		promoteTTL: 5 * time.Minute,
	}
}

// Memory exposes the memory tier for stats reporting.
func (t *Tiered) Memory() *Memory {
	return t.memory
}

// Get returns the first tier hit, or ErrNotFound when every tier misses.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if value, err := t.memory.Get(ctx, key); err == nil {
		return value, nil
	}

	if t.redis != nil {
		value, err := t.redis.Get(ctx, key)
		switch {
		case err == nil:
			t.memory.Set(ctx, key, value, t.promoteTTL)
			return value, nil
		case !errors.Is(err, ErrNotFound):
			log.Debug().Err(err).Str("key", key).Msg("Redis cache tier unavailable")
		}
	}

	if t.file != nil {
		if value, err := t.file.Get(ctx, key); err == nil {
			ttl := t.promoteTTL
			if expires, ok := t.file.Expiry(key); ok {
				if remaining := time.Until(expires); remaining < ttl {
					ttl = remaining
				}
			}
			if ttl > 0 {
				t.memory.Set(ctx, key, value, ttl)
				if t.redis != nil {
					if err := t.redis.Set(ctx, key, value, ttl); err != nil {
						log.Debug().Err(err).Str("key", key).Msg("Redis cache backfill failed")
					}
				}
			}
			return value, nil
		}
	}

	return nil, ErrNotFound
}

// Set writes through all tiers. A Redis failure is logged and swallowed; a
// file failure is returned since it breaks durability.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t.memory.Set(ctx, key, value, ttl)

	if t.redis != nil {
		if err := t.redis.Set(ctx, key, value, ttl); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Redis cache write failed")
		}
	}

	if t.file != nil {
		if err := t.file.Set(ctx, key, value, ttl); err != nil {
			return fmt.Errorf("file cache tier: %w", err)
		}
	}
	return nil
}

// GetJSON reads key from s and unmarshals it into out.
func GetJSON(ctx context.Context, s Store, key string, out interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON marshals v and stores it under key for ttl.
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s for cache: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}
