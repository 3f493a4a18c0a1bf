package persistence

import (
	"fmt"
	"time"

	"madrasah/internal/common"

	"github.com/go-redis/redis/v7"
)

const (
	DefaultRedisDialTimeout  = 3 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisIdleTimeout  = 30 * time.Second
)

type RedisConnectionOpts struct {
	AppName             string
	Addr                string
	DB                  int
	RetryInterval       time.Duration
	HealthcheckInterval time.Duration
}

type RedisAuthOpts struct {
	Username string
	Password string
}

func NewRedis(
	connectionOpts RedisConnectionOpts,
	authOpts RedisAuthOpts,
	serviceLogs chan<- common.ServiceLog,
) *Redis {
	output := &Redis{
		supervisor: newSupervisor(
			"redis",
			connectionOpts.AppName,
			connectionOpts.HealthcheckInterval,
			connectionOpts.RetryInterval,
			serviceLogs,
		),
	}
	output.client = redis.NewClient(&redis.Options{
		Addr:         connectionOpts.Addr,
		DB:           connectionOpts.DB,
		Username:     authOpts.Username,
		Password:     authOpts.Password,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		IdleTimeout:  DefaultRedisIdleTimeout,
	})
	output.supervisor.connect = output.connect
	output.supervisor.ping = output.ping
	return output
}

// Redis wraps a pooled client; the pool redials by itself so a
// reconnect only has to prove the server answers again
type Redis struct {
	*supervisor

	client *redis.Client
}

func (r *Redis) GetClient() *redis.Client {
	return r.client
}

func (r *Redis) Init() error {
	return r.supervisor.init()
}

func (r *Redis) Shutdown() error {
	r.supervisor.shutdown()
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to disconnect redis: %w", err)
	}
	return nil
}

func (r *Redis) connect() error {
	testKey := "connect-test-" + time.Now().Format("20060102150405")
	if err := r.client.Set(testKey, "test", 5*time.Second).Err(); err != nil {
		return fmt.Errorf("redis[%s] failed to SET: %w", r.id, err)
	}
	if value, err := r.client.Get(testKey).Result(); err != nil {
		return fmt.Errorf("redis[%s] failed to GET: %w", r.id, err)
	} else if value != "test" {
		return fmt.Errorf("redis[%s] failed to reconcile SET/GET value", r.id)
	}
	if err := r.client.Unlink(testKey).Err(); err != nil {
		return fmt.Errorf("redis[%s] failed to DEL: %w", r.id, err)
	}
	return nil
}

func (r *Redis) ping() error {
	return r.client.Ping().Err()
}
