package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisFixedWindowScript increments the window counter and stamps its TTL on
// first touch, atomically. A lost race that re-sets the TTL is harmless.
// KEYS[1] = window key
// ARGV[1] = window length in seconds
var redisFixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
    redis.call("EXPIRE", KEYS[1], tonumber(ARGV[1]))
end
local ttl = redis.call("TTL", KEYS[1])
return {n, ttl}
`)

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a limiter store backed by an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Allow executes the fixed-window script and applies the limit.
func (s *RedisStore) Allow(ctx context.Context, projectID, bucket string, limit Limit) (Decision, error) {
	key := Key(projectID, bucket, time.Now())

	res, err := redisFixedWindowScript.Run(ctx, s.client, []string{key}, int(Window.Seconds())).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("limiter: redis window: %w", err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return Decision{}, fmt.Errorf("limiter: invalid response from lua script")
	}
	count, _ := results[0].(int64)
	ttl, _ := results[1].(int64)
	if ttl < 0 {
		ttl = int64(Window.Seconds())
	}

	if int(count) > limit.Max() {
		return Decision{Allowed: false, RetryAfter: time.Duration(ttl) * time.Second}, nil
	}
	return Decision{Allowed: true, Remaining: limit.Max() - int(count)}, nil
}
