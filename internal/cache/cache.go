package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache_miss")

// Cache is the key/value store used for sessions and rate limits
type Cache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Get returns ErrNotFound when the key is missing or expired
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error

	// Incr increments the integer stored at key, creating it at 1 when
	// missing, and returns the new value
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
