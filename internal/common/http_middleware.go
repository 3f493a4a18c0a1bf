package common

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

type HttpContextKey string

const (
	HttpContextRequestId HttpContextKey = "http-request-id"
	HttpContextLogger    HttpContextKey = "http-logger"
)

type HttpRequestLogger func(string, string)

// GetRequestLogger returns the request-scoped logger, or a logger that
// discards messages when the request did not pass through the request
// logger middleware
func GetRequestLogger(r *http.Request) HttpRequestLogger {
	if log, ok := r.Context().Value(HttpContextLogger).(HttpRequestLogger); ok {
		return log
	}
	return func(string, string) {}
}

func GetRequestLoggerMiddleware(serviceLogs chan<- ServiceLog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestId := r.Header.Get("X-Trace-Id")
			if requestId == "" {
				requestId = uuid.New().String()
			}
			w.Header().Set("X-Trace-Id", requestId)
			requestContext := context.WithValue(r.Context(), HttpContextRequestId, requestId)
			requestContext = context.WithValue(requestContext, HttpContextLogger, HttpRequestLogger(func(level string, message string) {
				serviceLogs <- ServiceLogf(level, "req[%s] %s", requestId, message)
			}))
			serviceLogs <- ServiceLogf(LogLevelDebug, "req[%s] received %s at %s", requestId, r.Method, r.URL.Path)
			next.ServeHTTP(w, r.WithContext(requestContext))
			serviceLogs <- ServiceLogf(LogLevelInfo, "req[%s] [%s %s %s] from remote[%s] completed in %v", requestId, r.Proto, r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
		})
	}
}

// GetRecoveryMiddleware converts panics in downstream handlers into
// 500 responses
func GetRecoveryMiddleware(serviceLogs chan<- ServiceLog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					serviceLogs <- ServiceLogf(LogLevelError, "recovered from panic on %s %s: %v\n%s", r.Method, r.URL.Path, recovered, debug.Stack())
					SendHttpFailResponse(w, r, http.StatusInternalServerError, "an unexpected error occurred", ErrorInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIpMiddleware resolves the caller's address once per request so
// that ClientIp honours X-Forwarded-For from trustedProxies only
func GetClientIpMiddleware(trustedProxies []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip, err := resolveClientIp(r, trustedProxies); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), clientIpContextKey{}, ip))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetIpAllowlistMiddleware(serviceLogs chan<- ServiceLog, allowedCidrs []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ipAddress, err := requestIp(r)
			if err != nil || !isIpAllowed(ipAddress, allowedCidrs) {
				serviceLogs <- ServiceLogf(LogLevelWarn, "rejected request from remote[%s] outside of the allowlist", r.RemoteAddr)
				SendHttpFailResponse(w, r, http.StatusForbidden, "forbidden", fmt.Errorf("ip_not_allowed"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
