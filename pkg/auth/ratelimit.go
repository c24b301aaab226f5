package auth

import (
	"context"
	"math"
	"net/http"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/limiter"
)

// LimitResolver returns the window allowance for a tenant. The server wires
// this to per-project settings with the configured default as fallback.
type LimitResolver func(ctx context.Context, projectID string) limiter.Limit

// RateLimitMiddleware enforces the fixed-window limit per (tenant, class).
// It must run after the auth middleware; unauthenticated requests pass
// through untouched.
func RateLimitMiddleware(store limiter.Store, resolve LimitResolver, class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			projectID := ProjectID(r.Context())
			if projectID == "" {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := store.Allow(r.Context(), projectID, class.Bucket(), resolve(r.Context(), projectID))
			if err != nil {
				// Fail open when the limiter backend is unreachable.
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				api.WriteTooManyRequests(w, int(math.Ceil(decision.RetryAfter.Seconds())))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
