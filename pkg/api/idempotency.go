package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
)

// ResponseTTL is how long a completed response stays replayable.
const ResponseTTL = 24 * time.Hour

// LockTTL bounds the single-flight sentinel so a crashed or cancelled
// execution cannot wedge future replays.
const LockTTL = 30 * time.Second

// waitPoll is the interval at which concurrent callers re-check for the
// original execution's response.
const waitPoll = 100 * time.Millisecond

// BeginOutcome is the result of attempting to start an idempotent execution.
type BeginOutcome int

const (
	// BeginAcquired means the caller owns the sentinel and must run the handler.
	BeginAcquired BeginOutcome = iota
	// BeginReplay means a stored response exists for this key and digest.
	BeginReplay
	// BeginInFlight means another execution holds the sentinel.
	BeginInFlight
	// BeginConflict means the key was seen with a different request body.
	BeginConflict
)

// StoredResponse is a previously-produced response held for replay.
type StoredResponse struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
}

// IdempotencyStorer defines the interface for idempotency backends.
type IdempotencyStorer interface {
	Begin(ctx context.Context, key, digest string) (BeginOutcome, *StoredResponse, error)
	Complete(ctx context.Context, key, digest string, resp *StoredResponse) error
	Abort(ctx context.Context, key string) error
}

// TenantFunc resolves the tenant scope for the current request.
type TenantFunc func(ctx context.Context) string

// BodyDigest hashes a request body for conflict detection. JSON bodies are
// canonicalized first so key order does not defeat the comparison.
func BodyDigest(raw []byte) string {
	if canon, err := jcs.Transform(raw); err == nil {
		raw = canon
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// IdempotencyMiddleware ensures that mutating requests with an Idempotency-Key
// header (or a request_id in the body) are executed at most once per 24h.
// The first request takes a short-lived sentinel; concurrent requests with the
// same key wait for its response. Replays are served verbatim with an
// Idempotency-Replayed header. A reused key with a different body is a 409.
func IdempotencyMiddleware(store IdempotencyStorer, tenant TenantFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				WriteBadRequest(w, CodeValidationError, "read body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				key = bodyRequestID(raw)
			}
			scope := ""
			if tenant != nil {
				scope = tenant(r.Context())
			}
			if key == "" || scope == "" {
				next.ServeHTTP(w, r)
				return
			}

			fullKey := scope + ":" + key
			digest := BodyDigest(raw)

			for {
				outcome, cached, err := store.Begin(r.Context(), fullKey, digest)
				if err != nil {
					WriteInternal(w, err)
					return
				}
				switch outcome {
				case BeginReplay:
					replay(w, cached)
					return
				case BeginConflict:
					WriteConflict(w, CodeIdempotencyConflict, "idempotency key reused with a different request body")
					return
				case BeginInFlight:
					select {
					case <-r.Context().Done():
						WriteInternal(w, r.Context().Err())
						return
					case <-time.After(waitPoll):
						continue
					}
				case BeginAcquired:
					capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
					next.ServeHTTP(capture, r)

					if capture.statusCode >= 200 && capture.statusCode < 300 {
						stored := &StoredResponse{
							StatusCode: capture.statusCode,
							Header:     w.Header().Clone(),
							Body:       capture.body.Bytes(),
						}
						// Completion uses a fresh context: a cancelled request
						// must still release the sentinel.
						ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						if err := store.Complete(ctx, fullKey, digest, stored); err != nil {
							slog.Warn("idempotency: store response failed", "error", err)
						}
					} else {
						ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						if err := store.Abort(ctx, fullKey); err != nil {
							slog.Warn("idempotency: release sentinel failed", "error", err)
						}
					}
					return
				}
			}
		})
	}
}

func replay(w http.ResponseWriter, cached *StoredResponse) {
	for k, vals := range cached.Header {
		for _, v := range vals {
			w.Header().Set(k, v)
		}
	}
	w.Header().Set("Idempotency-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func bodyRequestID(raw []byte) string {
	var probe struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.RequestID
}

// responseCapture wraps http.ResponseWriter to capture the response.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rc *responseCapture) WriteHeader(code int) {
	rc.statusCode = code
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// MemoryIdempotencyStore implements IdempotencyStorer in process memory.
// It backs tests and cacheless deployments.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]*memResponse
	locks     map[string]*memLock
}

type memResponse struct {
	digest  string
	resp    *StoredResponse
	expires time.Time
}

type memLock struct {
	digest  string
	expires time.Time
}

// NewMemoryIdempotencyStore creates an in-memory idempotency store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	s := &MemoryIdempotencyStore{
		responses: make(map[string]*memResponse),
		locks:     make(map[string]*memLock),
	}
	go s.cleanup()
	return s
}

func (s *MemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for k, v := range s.responses {
			if now.After(v.expires) {
				delete(s.responses, k)
			}
		}
		for k, v := range s.locks {
			if now.After(v.expires) {
				delete(s.locks, k)
			}
		}
		s.mu.Unlock()
	}
}

// Begin implements IdempotencyStorer.
func (s *MemoryIdempotencyStore) Begin(_ context.Context, key, digest string) (BeginOutcome, *StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if rec, ok := s.responses[key]; ok && now.Before(rec.expires) {
		if rec.digest != digest {
			return BeginConflict, nil, nil
		}
		return BeginReplay, rec.resp, nil
	}
	if lock, ok := s.locks[key]; ok && now.Before(lock.expires) {
		if lock.digest != digest {
			return BeginConflict, nil, nil
		}
		return BeginInFlight, nil, nil
	}
	s.locks[key] = &memLock{digest: digest, expires: now.Add(LockTTL)}
	return BeginAcquired, nil, nil
}

// Complete implements IdempotencyStorer.
func (s *MemoryIdempotencyStore) Complete(_ context.Context, key, digest string, resp *StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key] = &memResponse{digest: digest, resp: resp, expires: time.Now().Add(ResponseTTL)}
	delete(s.locks, key)
	return nil
}

// Abort implements IdempotencyStorer.
func (s *MemoryIdempotencyStore) Abort(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}
