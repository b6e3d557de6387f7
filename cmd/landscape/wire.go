package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FranksOps/landscape/internal/config"
	"github.com/FranksOps/landscape/internal/fingerprint"
	"github.com/FranksOps/landscape/internal/lock"
	"github.com/FranksOps/landscape/internal/pipeline"
	"github.com/FranksOps/landscape/internal/rules"
	"github.com/FranksOps/landscape/internal/serp"
	"github.com/FranksOps/landscape/internal/storage"
	"github.com/FranksOps/landscape/internal/storage/backends"
	"github.com/FranksOps/landscape/pkg/httpclient"
	"github.com/FranksOps/landscape/pkg/proxy"
	"github.com/FranksOps/landscape/pkg/ratelimit"
	"github.com/FranksOps/landscape/pkg/useragent"
)

// components is everything a command needs to run analyses.
type components struct {
	analyzer *pipeline.Analyzer
	store    storage.Store
	redis    *redis.Client
	logger   *slog.Logger
}

func (c *components) Close() error {
	var errs []error
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return errors.Join(errs...)
}

func loadRules(cfg config.RulesConfig) (*rules.Rules, error) {
	if cfg.Path == "" {
		return rules.Default(), nil
	}
	return rules.Load(cfg.Path)
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *components, err error) {
	c := &components{logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	r, err := loadRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	if cfg.NeedsRedis() {
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	provider, err := buildProvider(cfg.Search, c.redis, logger)
	if err != nil {
		return nil, err
	}

	c.store, err = backends.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", backends.Describe(cfg.Store.DSN), err)
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Lock.Backend == "redis" {
		locker = lock.NewRedis(c.redis, lock.RedisConfig{TTL: cfg.Lock.TTL, Logger: logger})
	}

	c.analyzer, err = pipeline.New(pipeline.Config{
		Provider: provider,
		Store:    c.store,
		Locker:   locker,
		Rules:    r,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("analyzer ready",
		"provider", provider.Name(),
		"store", backends.Describe(cfg.Store.DSN),
		"lock", cfg.Lock.Backend,
		"cache", cfg.Search.Cache,
		"rules_version", r.Version,
	)
	return c, nil
}

// buildProvider assembles the outbound stack for the configured search
// provider: throttle, proxies, and TLS fingerprint feed one httpclient, and
// the provider is instrumented and optionally cached on top.
func buildProvider(cfg config.SearchConfig, rdb redis.Cmdable, logger *slog.Logger) (serp.Provider, error) {
	proxies, err := proxy.NewPool(proxy.Config{}, cfg.Proxies...)
	if err != nil {
		return nil, fmt.Errorf("proxies: %w", err)
	}
	if proxies.Len() == 0 {
		proxies = nil
	}

	profile := fingerprint.ProfileGo
	var uas *useragent.Pool
	if cfg.Provider == "duckduckgo" {
		if profile, err = fingerprint.ParseProfile(cfg.Fingerprint); err != nil {
			return nil, err
		}
		strategy, err := useragent.ParseStrategy(cfg.UserAgentStrategy)
		if err != nil {
			return nil, err
		}
		uas = useragent.NewPool(nil, strategy)
	}

	transport, err := fingerprint.Transport(profile, fingerprint.Options{Proxy: proxy.FromRequest})
	if err != nil {
		return nil, err
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 5,
		UseCookieJar: cfg.Provider == "duckduckgo",
		Transport:    transport,
		Limiter:      ratelimit.NewLimiter(cfg.RateLimit, cfg.Burst, cfg.Jitter),
		UserAgents:   uas,
		Proxies:      proxies,
	})
	if err != nil {
		return nil, err
	}

	var p serp.Provider
	switch cfg.Provider {
	case "duckduckgo":
		p, err = serp.NewDuckDuckGo(serp.DuckDuckGoConfig{Endpoint: cfg.DuckDuckGoEndpoint, Client: client})
	default:
		p, err = serp.NewSerper(serp.SerperConfig{APIKey: cfg.SerperAPIKey, Endpoint: cfg.SerperEndpoint, Client: client})
	}
	if err != nil {
		return nil, err
	}

	p = serp.Instrument(p)
	if cfg.Cache {
		p = serp.NewCached(p, rdb, serp.CacheConfig{TTL: cfg.CacheTTL, Logger: logger})
	}
	return p, nil
}
