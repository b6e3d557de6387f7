// Package httpclient is the outbound HTTP client shared by search providers.
// It layers rate limiting, User-Agent rotation and proxy rotation over a
// standard http.Client.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/FranksOps/landscape/pkg/proxy"
	"github.com/FranksOps/landscape/pkg/ratelimit"
	"github.com/FranksOps/landscape/pkg/useragent"
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Transport, e.g. a uTLS fingerprint transport. It must honour
	// proxy.FromRequest when Proxies is set.
	Transport http.RoundTripper
	// Optional collaborators; nil disables each.
	Limiter    *ratelimit.Limiter
	UserAgents *useragent.Pool
	Proxies    *proxy.Pool
}

// Client wraps a standard http.Client.
type Client struct {
	http    *http.Client
	limiter *ratelimit.Limiter
	uas     *useragent.Pool
	proxies *proxy.Pool
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{Timeout: cfg.Timeout}

	if cfg.MaxRedirects >= 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{http: c, limiter: cfg.Limiter, uas: cfg.UserAgents, proxies: cfg.Proxies}, nil
}

// Do executes req under ctx. It waits for the limiter, fills in a
// User-Agent when the request has none, and routes through the next healthy
// proxy, reporting the outcome back to the pool.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("httpclient: rate limit: %w", err)
	}

	via := c.proxies.Next()
	if via != nil {
		ctx = proxy.WithProxy(ctx, via)
	}

	out := req.Clone(ctx)
	if c.uas != nil && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", c.uas.Pick())
	}

	resp, err := c.http.Do(out)
	if via != nil {
		_ = c.proxies.Report(via, err == nil && resp.StatusCode < http.StatusInternalServerError)
	}
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}
