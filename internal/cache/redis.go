package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"madrasah/internal/common"

	"github.com/go-redis/redis/v7"
)

type NewRedisOpts struct {
	Client      *redis.Client
	ServiceLogs chan<- common.ServiceLog
}

func NewRedis(opts NewRedisOpts) *Redis {
	serviceLogs := opts.ServiceLogs
	if serviceLogs == nil {
		serviceLogs = common.GetNoopServiceLog()
	}
	return &Redis{Client: opts.Client, ServiceLogs: serviceLogs}
}

type Redis struct {
	Client      *redis.Client
	ServiceLogs chan<- common.ServiceLog
}

func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	status := r.Client.WithContext(ctx).Set(key, value, ttl)
	if err := status.Err(); err != nil {
		return fmt.Errorf("failed to set key[%s]: %w", key, err)
	}
	r.ServiceLogs <- common.ServiceLogf(common.LogLevelTrace, "set key[%s] response: %s", key, status.Val())
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.Client.WithContext(ctx).Get(key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get key[%s]: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Del(ctx context.Context, key string) error {
	if err := r.Client.WithContext(ctx).Unlink(key).Err(); err != nil {
		return fmt.Errorf("failed to delete key[%s]: %w", key, err)
	}
	r.ServiceLogs <- common.ServiceLogf(common.LogLevelTrace, "deleted key[%s]", key)
	return nil
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	value, err := r.Client.WithContext(ctx).Incr(key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment key[%s]: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.Client.WithContext(ctx).Expire(key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set expiry of key[%s]: %w", key, err)
	}
	return nil
}
