// Package limiter implements the fixed-window rate limiter shared by all
// runtime endpoints. Windows are keyed by (project, endpoint class); the
// decision reflects the post-increment counter value.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Window is the fixed rate-limit window length.
const Window = time.Minute

// Limit is a per-tenant allowance for one window.
type Limit struct {
	Count int
	Burst int
}

// Max is the effective ceiling: the (Max+1)-th request in a window is denied.
func (l Limit) Max() int { return l.Count + l.Burst }

// Decision is the outcome of a single increment.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Store increments and checks a window counter atomically.
type Store interface {
	Allow(ctx context.Context, projectID, bucket string, limit Limit) (Decision, error)
}

// Key builds the counter key for the current window.
func Key(projectID, bucket string, now time.Time) string {
	windowStart := now.Unix() - now.Unix()%int64(Window.Seconds())
	return fmt.Sprintf("rl:%s:%s:%d", projectID, bucket, windowStart)
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memWindow
}

type memWindow struct {
	count   int
	resetAt time.Time
}

// NewMemoryStore creates an in-process limiter store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{windows: make(map[string]*memWindow)}
	go s.cleanup()
	return s
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(Window)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for k, w := range s.windows {
			if now.After(w.resetAt) {
				delete(s.windows, k)
			}
		}
		s.mu.Unlock()
	}
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, projectID, bucket string, limit Limit) (Decision, error) {
	now := time.Now()
	key := Key(projectID, bucket, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &memWindow{resetAt: now.Truncate(Window).Add(Window)}
		s.windows[key] = w
	}
	w.count++

	if w.count > limit.Max() {
		return Decision{Allowed: false, RetryAfter: time.Until(w.resetAt)}, nil
	}
	return Decision{Allowed: true, Remaining: limit.Max() - w.count}, nil
}
