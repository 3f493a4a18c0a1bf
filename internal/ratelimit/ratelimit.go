// Package ratelimit throttles the public endpoints per client ip with a
// fixed window counter kept in the shared cache
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"madrasah/internal/cache"
	"madrasah/internal/common"
)

// Limiter is a fixed window counter shared through the cache so that
// every controller replica sees the same counts
type Limiter struct {
	Cache       cache.Cache
	Scope       string
	Limit       int64
	Window      time.Duration
	ServiceLogs chan<- common.ServiceLog

	now func() time.Time
}

type Decision struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

func (l *Limiter) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func (l *Limiter) key(identity string, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", l.Scope, identity, windowStart.Unix())
}

// Allow counts one hit for the identity in the current window
func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	now := l.clock()
	windowStart := now.Truncate(l.Window)
	resetAt := windowStart.Add(l.Window)
	key := l.key(identity, windowStart)

	count, err := l.Cache.Incr(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count hit for %s: %w", key, err)
	}
	if count == 1 {
		if err := l.Cache.Expire(ctx, key, l.Window); err != nil {
			return Decision{}, fmt.Errorf("failed to set window of %s: %w", key, err)
		}
	}
	remaining := l.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Middleware rejects requests with 429 once the client ip exceeds the
// limit; cache errors let the request through. The client ip only
// reflects X-Forwarded-For when a trusted proxy sent the request.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	serviceLogs := l.ServiceLogs
	if serviceLogs == nil {
		serviceLogs = common.GetNoopServiceLog()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := l.Allow(r.Context(), common.ClientIp(r))
		if err != nil {
			serviceLogs <- common.ServiceLogf(common.LogLevelWarn, "rate limiter[%s] unavailable: %s", l.Scope, err)
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if !decision.Allowed {
			rejectedCounter.WithLabelValues(l.Scope).Inc()
			retryAfter := int(decision.ResetAt.Sub(l.clock()).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			common.SendHttpFailResponse(w, r, http.StatusTooManyRequests, "too many requests, try again later", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
