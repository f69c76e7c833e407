package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds the request context. Filesystem operations check
// the context before they start, so a request that waited too long is
// rejected instead of run.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
