package api

import (
	"context"
	"net/http"
	"time"
)

// RequestTimeout is the hard deadline for a single request. Outbound calls
// inherit it through the request context, so a slow geocoder or resolver
// cannot hold a connection past it.
const RequestTimeout = 10 * time.Second

// TimeoutMiddleware attaches a deadline to every request context.
func TimeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		d = RequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
