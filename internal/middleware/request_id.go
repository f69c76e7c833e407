package middleware

import (
	"net/http"

	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging"
)

const (
	RequestIDHeader = "X-Request-ID"

	// maxRequestIDLen bounds client supplied ids that end up in every log line.
	maxRequestIDLen = 128
)

// RequestIDMiddleware attaches a request id to the request context and
// echoes it in the response. An id already in the context wins over the
// X-Request-ID header; without either a fresh one is generated.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := logging.GetRequestIDFromCtx(ctx)
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
		}
		if len(requestID) > maxRequestIDLen {
			requestID = ""
		}

		if requestID == "" {
			ctx = logging.MakeContextWithNewRequestID(ctx)
		} else {
			ctx = logging.MakeContextWithRequestID(ctx, requestID)
		}

		w.Header().Set(RequestIDHeader, logging.GetRequestIDFromCtx(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
