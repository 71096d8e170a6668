package http

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Requests: 3, Window: time.Minute, CleanupInterval: time.Hour})
	defer rl.Stop()
	srv := newTestServer(t, rl)

	for i := 0; i < 3; i++ {
		w, _ := do(t, srv.router, http.MethodGet, "/api/health", nil, "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w, resp := do(t, srv.router, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, codeRateLimited, resp.Code)

	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.LessOrEqual(t, retry, 20)
}

func TestRateLimiter_PerClientIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Requests: 1, Window: time.Minute, CleanupInterval: time.Hour})
	defer rl.Stop()
	srv := newTestServer(t, rl)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
	assert.Equal(t, 2, rl.Clients())
}

func TestRateLimiter_OnlyAPIRoutes(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Requests: 1, Window: time.Minute, CleanupInterval: time.Hour})
	defer rl.Stop()
	srv := newTestServer(t, rl)

	do(t, srv.router, http.MethodGet, "/api/health", nil, "")
	w, _ := do(t, srv.router, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// routes outside /api are not limited
	w, _ = do(t, srv.router, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimiter_CleanupForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Requests: 5, Window: time.Minute, CleanupInterval: time.Hour})
	defer rl.Stop()

	now := time.Now()
	rl.limiterFor("10.0.0.1", now.Add(-2*time.Minute))
	rl.limiterFor("10.0.0.2", now)

	rl.cleanup(now)
	assert.Equal(t, 1, rl.Clients())
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}
