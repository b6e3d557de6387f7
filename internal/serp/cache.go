package serp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FranksOps/landscape/internal/metrics"
)

// CacheConfig configures the daily search cache.
type CacheConfig struct {
	// TTL bounds how long an entry lives. Keys are also scoped to the UTC day,
	// so a new day always misses.
	TTL    time.Duration
	Prefix string
	Now    func() time.Time
	Logger *slog.Logger
}

// Cached memoizes a provider's rankings in Redis for the current day, so a
// retried run sees the same ranking it saw the first time. Redis failures
// degrade to an uncached call.
type Cached struct {
	next   Provider
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

var _ Provider = (*Cached)(nil)

func NewCached(next Provider, rdb redis.Cmdable, cfg CacheConfig) *Cached {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "landscape:serp"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cached{next: next, rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, now: cfg.Now, logger: cfg.Logger}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	key := c.key(query, opts)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Result
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		c.logger.Warn("discarding corrupt search cache entry", "key", key)
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	default:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("search cache unavailable", "error", err)
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
	}

	results, err := c.next.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if payload, jerr := json.Marshal(results); jerr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.logger.Warn("search cache write failed", "key", key, "error", serr)
		}
	}
	return results, nil
}

func (c *Cached) key(query string, opts Options) string {
	h := sha256.New()
	for _, part := range []string{query, opts.Region, opts.Language, strconv.Itoa(opts.Limit)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	day := c.now().UTC().Format(time.DateOnly)
	return fmt.Sprintf("%s:%s:%s:%s", c.prefix, c.next.Name(), day, hex.EncodeToString(h.Sum(nil))[:32])
}
