package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL        = 30 * time.Second
	DefaultRetryDelay = 100 * time.Millisecond
	DefaultMaxRetries = 100
)

var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisConfig holds configuration for the Redis locker.
type RedisConfig struct {
	Prefix     string        // key prefix (default: landscape:lock)
	TTL        time.Duration // upper bound on a crashed holder's lock (default: 30s)
	RetryDelay time.Duration // delay between attempts (default: 100ms)
	MaxRetries int           // attempts before ErrNotAcquired (default: 100)
	Logger     *slog.Logger
}

// Redis is a SETNX-based lock shared by every replica pointing at the same
// Redis. Each acquisition uses a fresh token, so a holder can only release
// its own lock.
type Redis struct {
	client     redis.Cmdable
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	maxRetries int
	logger     *slog.Logger
}

var _ Locker = (*Redis)(nil)

func NewRedis(client redis.Cmdable, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "landscape:lock"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Redis{
		client:     client,
		prefix:     cfg.Prefix,
		ttl:        cfg.TTL,
		retryDelay: cfg.RetryDelay,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

// Acquire retries SETNX until it wins, ctx is done, or retries run out.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	full := r.prefix + ":" + key
	token := uuid.NewString()

	for i := range r.maxRetries {
		ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return r.releaser(full, token), nil
		}

		if i < r.maxRetries-1 {
			t := time.NewTimer(r.retryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
}

func (r *Redis) releaser(full, token string) func() {
	return func() {
		// The caller's ctx may already be cancelled; release must still run.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := unlockScript.Run(ctx, r.client, []string{full}, token).Int()
		switch {
		case err != nil:
			r.logger.Warn("lock release failed", "key", full, "error", err)
		case n == 0:
			r.logger.Warn("lock expired before release", "key", full)
		}
	}
}
