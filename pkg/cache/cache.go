// Package cache provides the ephemeral key-value and membership-set storage
// used by validators, the rate limiter, and the disposable-domain refresher.
// A Redis deployment and an in-process fallback implement the same interfaces.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a TTL'd byte store. Validators use it read-through: look up,
// compute on miss, write back with the validator's TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Add stores the value only if the key is absent and reports whether it
	// stored. Nonce replay protection depends on this being atomic.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Set is a membership set with atomic replacement. Readers always observe
// either the previous or the new fully-built set, never a partial one.
type Set interface {
	Contains(ctx context.Context, member string) (bool, error)
	// Swap replaces the whole set with members in one atomic step.
	Swap(ctx context.Context, members []string) error
	Size(ctx context.Context) (int64, error)
}

// Connect dials Redis from a URL of the form redis://[:pass@]host:port/db.
// An empty URL returns nil with no error; callers fall back to the in-process
// implementations.
func Connect(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse CACHE_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}
