// Package config loads landscape settings from an optional YAML file and
// LANDSCAPE_* environment variables. Nested keys map to env names with dots
// replaced by underscores, e.g. search.provider is LANDSCAPE_SEARCH_PROVIDER.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "LANDSCAPE"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Search  SearchConfig  `mapstructure:"search"`
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Lock    LockConfig    `mapstructure:"lock"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SearchConfig struct {
	// Provider is "serper" or "duckduckgo".
	Provider           string        `mapstructure:"provider"`
	SerperAPIKey       string        `mapstructure:"serper_api_key"`
	SerperEndpoint     string        `mapstructure:"serper_endpoint"`
	DuckDuckGoEndpoint string        `mapstructure:"duckduckgo_endpoint"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Fingerprint        string        `mapstructure:"fingerprint"`
	UserAgentStrategy  string        `mapstructure:"user_agent_strategy"`
	Proxies            []string      `mapstructure:"proxies"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	Burst              int           `mapstructure:"burst"`
	Jitter             float64       `mapstructure:"jitter"`
	Cache              bool          `mapstructure:"cache"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
}

type StoreConfig struct {
	// DSN selects the backend by scheme: memory://, postgres://, sqlite://, json://.
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LockConfig struct {
	// Backend is "local" or "redis".
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RulesConfig struct {
	// Path to a YAML rule file; empty uses the embedded defaults.
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Addr starts a standalone metrics listener; empty mounts /metrics on the API router.
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("search.provider", "serper")
	v.SetDefault("search.serper_api_key", "")
	v.SetDefault("search.serper_endpoint", "https://google.serper.dev/search")
	v.SetDefault("search.duckduckgo_endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.timeout", "15s")
	v.SetDefault("search.fingerprint", "chrome")
	v.SetDefault("search.user_agent_strategy", "random")
	v.SetDefault("search.proxies", []string{})
	v.SetDefault("search.rate_limit", 1.0)
	v.SetDefault("search.burst", 1)
	v.SetDefault("search.jitter", 0.25)
	v.SetDefault("search.cache", false)
	v.SetDefault("search.cache_ttl", "24h")

	v.SetDefault("store.dsn", "memory://")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.ttl", "30s")

	v.SetDefault("rules.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", "")
}

// New returns a viper instance with defaults and environment binding in
// place, ready for flag binding before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// The bare name is what Serper's own docs use.
	_ = v.BindEnv("search.serper_api_key", EnvPrefix+"_SEARCH_SERPER_API_KEY", "SERPER_API_KEY")
	return v
}

// Load reads path (optional) into v and returns the validated config. A
// missing path is fine; an unreadable or malformed file is not.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
	c.Lock.Backend = strings.ToLower(strings.TrimSpace(c.Lock.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	// A single env var arrives as one comma-separated element.
	var proxies []string
	for _, p := range c.Search.Proxies {
		for _, part := range strings.Split(p, ",") {
			if part = strings.TrimSpace(part); part != "" {
				proxies = append(proxies, part)
			}
		}
	}
	c.Search.Proxies = proxies
}

// Validate reports every problem at once. A missing Serper key is not an
// error here; the provider reports it per request so the server still starts.
func (c *Config) Validate() error {
	var errs []error

	switch c.Search.Provider {
	case "serper", "duckduckgo":
	default:
		errs = append(errs, fmt.Errorf("search.provider must be serper or duckduckgo, got %q", c.Search.Provider))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("search.timeout must be positive"))
	}
	if c.Search.RateLimit < 0 {
		errs = append(errs, errors.New("search.rate_limit must not be negative"))
	}
	if c.Search.Jitter < 0 || c.Search.Jitter > 1 {
		errs = append(errs, errors.New("search.jitter must be between 0 and 1"))
	}
	if c.Search.Cache && c.Redis.Addr == "" {
		errs = append(errs, errors.New("search.cache requires redis.addr"))
	}

	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("lock.backend redis requires redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock.backend must be local or redis, got %q", c.Lock.Backend))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *Config) NeedsRedis() bool {
	return c.Search.Cache || c.Lock.Backend == "redis"
}

// Logger builds the slog logger described by c, writing to w.
func (c LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
