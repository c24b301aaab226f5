package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on a shared Redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache backed by an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Add implements Cache.
func (c *RedisCache) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: add %s: %w", key, err)
	}
	return ok, nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// swapChunk bounds SADD pipeline batches during a set rebuild.
const swapChunk = 1000

// RedisSet implements Set as a named Redis set. Swap builds the replacement
// under <name>:new and RENAMEs it over the active name, which Redis applies
// atomically.
type RedisSet struct {
	client *redis.Client
	name   string
}

// NewRedisSet creates a set with the given active key name.
func NewRedisSet(client *redis.Client, name string) *RedisSet {
	return &RedisSet{client: client, name: name}
}

// Contains implements Set.
func (s *RedisSet) Contains(ctx context.Context, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.name, member).Result()
	if err != nil {
		return false, fmt.Errorf("cache: set %s contains: %w", s.name, err)
	}
	return ok, nil
}

// Swap implements Set.
func (s *RedisSet) Swap(ctx context.Context, members []string) error {
	staging := s.name + ":new"
	if err := s.client.Del(ctx, staging).Err(); err != nil {
		return fmt.Errorf("cache: set %s clear staging: %w", s.name, err)
	}
	for start := 0; start < len(members); start += swapChunk {
		end := start + swapChunk
		if end > len(members) {
			end = len(members)
		}
		chunk := make([]interface{}, 0, end-start)
		for _, m := range members[start:end] {
			chunk = append(chunk, m)
		}
		if err := s.client.SAdd(ctx, staging, chunk...).Err(); err != nil {
			return fmt.Errorf("cache: set %s build staging: %w", s.name, err)
		}
	}
	if len(members) == 0 {
		// RENAME fails on a missing source; an empty rebuild just clears the set.
		if err := s.client.Del(ctx, s.name).Err(); err != nil {
			return fmt.Errorf("cache: set %s clear: %w", s.name, err)
		}
		return nil
	}
	if err := s.client.Rename(ctx, staging, s.name).Err(); err != nil {
		return fmt.Errorf("cache: set %s swap: %w", s.name, err)
	}
	return nil
}

// Size implements Set.
func (s *RedisSet) Size(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.name).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: set %s size: %w", s.name, err)
	}
	return n, nil
}
