package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"madrasah/internal/cache"
	"madrasah/internal/common"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(now *time.Time) *Limiter {
	return &Limiter{
		Cache:  cache.NewMemory(),
		Scope:  "login",
		Limit:  3,
		Window: time.Minute,
		now:    func() time.Time { return *now },
	}
}

func TestLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 5, 0, time.UTC)
	limiter := newTestLimiter(&now)

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.Equal(t, int64(2-i), decision.Remaining)
	}
	decision, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, time.Date(2025, 1, 1, 10, 1, 0, 0, time.UTC), decision.ResetAt)

	other, err := limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	require.True(t, other.Allowed)

	now = now.Add(time.Minute)
	decision, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestLimiter_Middleware(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(&now)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := []int{}
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			require.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	require.Equal(t, []int{204, 204, 204, 429}, codes)
}

func TestLimiter_MiddlewareIgnoresRotatingForwardedFor(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(&now)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	trusted, _, err := common.ParseCidrs([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	handler = common.GetClientIpMiddleware(trusted)(handler)

	send := func(remoteAddr, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	codes := []int{}
	for i := 0; i < 4; i++ {
		codes = append(codes, send("192.0.2.10:5555", fmt.Sprintf("203.0.113.%d", i)))
	}
	require.Equal(t, []int{204, 204, 204, 429}, codes)

	// behind a trusted proxy the forwarded client is counted, and a
	// spoofed leftmost entry does not change it
	codes = []int{}
	for i := 0; i < 4; i++ {
		codes = append(codes, send("10.0.0.1:5555", fmt.Sprintf("198.51.100.%d, 203.0.113.50", i)))
	}
	require.Equal(t, []int{204, 204, 204, 429}, codes)
	require.Equal(t, http.StatusNoContent, send("10.0.0.1:5555", "203.0.113.51"))
}
