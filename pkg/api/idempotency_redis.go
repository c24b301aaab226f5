package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// idemBeginScript checks for a stored response and otherwise tries to take
// the single-flight sentinel, in one atomic step.
// KEYS[1] = response key
// KEYS[2] = sentinel key
// ARGV[1] = body digest
// ARGV[2] = sentinel TTL seconds
var idemBeginScript = redis.NewScript(`
local resp = redis.call("GET", KEYS[1])
if resp then
    return {"response", resp}
end
local ok = redis.call("SET", KEYS[2], ARGV[1], "NX", "EX", tonumber(ARGV[2]))
if ok then
    return {"acquired", ""}
end
local cur = redis.call("GET", KEYS[2])
return {"locked", cur or ""}
`)

// storedEnvelope is the persisted form: the response plus the digest of the
// body that produced it, for conflict detection on replay.
type storedEnvelope struct {
	Digest   string          `json:"digest"`
	Response *StoredResponse `json:"response"`
}

// RedisIdempotencyStore implements IdempotencyStorer on Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
}

// NewRedisIdempotencyStore creates a store backed by an existing Redis client.
func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func idemResponseKey(key string) string { return "idem:" + key }
func idemLockKey(key string) string     { return "idem:lock:" + key }

// Begin implements IdempotencyStorer.
func (s *RedisIdempotencyStore) Begin(ctx context.Context, key, digest string) (BeginOutcome, *StoredResponse, error) {
	res, err := idemBeginScript.Run(ctx, s.client,
		[]string{idemResponseKey(key), idemLockKey(key)},
		digest, int(LockTTL.Seconds()),
	).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("api: idempotency begin: %w", err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return 0, nil, fmt.Errorf("api: idempotency begin: unexpected script reply")
	}
	state, _ := parts[0].(string)
	payload, _ := parts[1].(string)

	switch state {
	case "response":
		var env storedEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return 0, nil, fmt.Errorf("api: idempotency decode stored response: %w", err)
		}
		if env.Digest != digest {
			return BeginConflict, nil, nil
		}
		return BeginReplay, env.Response, nil
	case "acquired":
		return BeginAcquired, nil, nil
	case "locked":
		if payload != digest {
			return BeginConflict, nil, nil
		}
		return BeginInFlight, nil, nil
	default:
		return 0, nil, fmt.Errorf("api: idempotency begin: unknown state %q", state)
	}
}

// Complete implements IdempotencyStorer.
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, digest string, resp *StoredResponse) error {
	raw, err := json.Marshal(storedEnvelope{Digest: digest, Response: resp})
	if err != nil {
		return fmt.Errorf("api: idempotency encode response: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, idemResponseKey(key), raw, ResponseTTL)
	pipe.Del(ctx, idemLockKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("api: idempotency complete: %w", err)
	}
	return nil
}

// Abort implements IdempotencyStorer.
func (s *RedisIdempotencyStore) Abort(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idemLockKey(key)).Err(); err != nil {
		return fmt.Errorf("api: idempotency abort: %w", err)
	}
	return nil
}
