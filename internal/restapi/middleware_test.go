package restapi

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csaplanner.dev/internal/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRateLimitMiddleware_AllowsBurst(t *testing.T) {
	rl := newRateLimiter(5, time.Second)
	defer rl.Stop()
	h := rl.rateLimitHandler(okHandler)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(h, "/test?key=k").Code, "request %d", i+1)
	}

	rec := get(h, "/test?key=k")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":429`)
}

func TestRateLimitMiddleware_PerAPIKey(t *testing.T) {
	rl := newRateLimiter(2, time.Second)
	defer rl.Stop()
	h := rl.rateLimitHandler(okHandler)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, get(h, "/test?key=a").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/test?key=a").Code)

	assert.Equal(t, http.StatusOK, get(h, "/test?key=b").Code)
	assert.Equal(t, http.StatusOK, get(h, "/test").Code)
}

func TestRateLimitMiddleware_Refills(t *testing.T) {
	rl := newRateLimiter(1, 50*time.Millisecond)
	defer rl.Stop()
	h := rl.rateLimitHandler(okHandler)

	assert.Equal(t, http.StatusOK, get(h, "/test?key=k").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/test?key=k").Code)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, http.StatusOK, get(h, "/test?key=k").Code)
}

func TestRateLimitMiddleware_ZeroDisables(t *testing.T) {
	h := NewRateLimitMiddleware(0, time.Second)(okHandler)
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, get(h, "/test?key=k").Code)
	}
}

func TestRateLimitMiddleware_Concurrent(t *testing.T) {
	rl := newRateLimiter(10, time.Minute)
	defer rl.Stop()
	h := rl.rateLimitHandler(okHandler)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := get(h, fmt.Sprintf("/test?key=k&n=%d", i))
			if rec.Code == http.StatusOK {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestRateLimitMiddleware_StopIsIdempotent(t *testing.T) {
	rl := newRateLimiter(1, time.Second)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestSecurityHeaders(t *testing.T) {
	h := securityHeaders(okHandler)

	t.Run("sets headers", func(t *testing.T) {
		rec := get(h, "/api/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
		assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		called := false
		h := securityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest(http.MethodOptions, "/api/csa-route", nil)
		req.Header.Set("Origin", "https://map.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, called)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})
}

func TestCompressionMiddleware(t *testing.T) {
	body := strings.Repeat(`{"segment":"transit"}`, 500)
	h := CompressionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))

	t.Run("compresses when accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		reader, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer reader.Close()
		decoded, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, body, string(decoded))
		assert.Less(t, rec.Body.Len(), len(body))
	})

	t.Run("plain without accept-encoding", func(t *testing.T) {
		rec := get(h, "/test")
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, body, rec.Body.String())
	})

	t.Run("small bodies stay plain", func(t *testing.T) {
		small := CompressionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		small.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, `{"ok":true}`, rec.Body.String())
	})
}

func TestRequestLoggingMiddleware(t *testing.T) {
	t.Run("logs request details", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.NewStructuredLogger(&buf, slog.LevelInfo)
		h := NewRequestLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/csa-route?key=k", nil)
		req.Header.Set("User-Agent", "test-client/1.0")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		out := buf.String()
		assert.Contains(t, out, `"msg":"http_request"`)
		assert.Contains(t, out, `"method":"POST"`)
		assert.Contains(t, out, `"path":"/api/csa-route"`)
		assert.Contains(t, out, `"status":201`)
		assert.Contains(t, out, `"user_agent":"test-client/1.0"`)
		assert.Contains(t, out, `"duration_ms":`)
		assert.Contains(t, out, `"component":"http_server"`)
	})

	t.Run("assigns a request id", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.NewStructuredLogger(&buf, slog.LevelInfo)
		var seen *slog.Logger
		h := NewRequestLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logging.FromContext(r.Context())
		}))

		rec := get(h, "/api/health")
		id := rec.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"request_id":"`+id+`"`)
		assert.NotSame(t, logger, seen)
	})

	t.Run("keeps a valid incoming id", func(t *testing.T) {
		logger := logging.NewStructuredLogger(io.Discard, slog.LevelInfo)
		h := NewRequestLoggingMiddleware(logger)(okHandler)

		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set(RequestIDHeader, id)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

		req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set(RequestIDHeader, "not-a-uuid")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
	})
}
