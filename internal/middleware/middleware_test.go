package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/S1riyS/os-course-lab-4/memfs/pkg/logging"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDFromHeader(t *testing.T) {
	var got string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logging.GetRequestIDFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", got)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDTooLongIsReplaced(t *testing.T) {
	var got string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logging.GetRequestIDFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Len(t, got, 36)
}

func TestRequestIDGenerated(t *testing.T) {
	var ids []string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, logging.GetRequestIDFromCtx(r.Context()))
	}))

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	assert.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestAccessLogKeepsStatus(t *testing.T) {
	h := AccessLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short", rec.Body.String())
}

func TestTimeoutMiddleware(t *testing.T) {
	var hasDeadline bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})

	TimeoutMiddleware(time.Second)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, hasDeadline)

	TimeoutMiddleware(0)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, hasDeadline)
}
