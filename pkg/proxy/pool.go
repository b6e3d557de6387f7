// Package proxy rotates outbound search requests across a set of proxies and
// benches proxies that keep failing.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnknown is returned when reporting on a proxy the pool does not hold.
var ErrUnknown = errors.New("proxy: not in pool")

type entry struct {
	url           *url.URL
	failures      int
	successes     int
	disabledUntil time.Time
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures consecutive failures bench a proxy.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out.
	Cooldown time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Pool hands out proxies round-robin, skipping benched ones.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool parses rawURLs into a pool. A URL without a scheme defaults to http.
func NewPool(cfg Config, rawURLs ...string) (*Pool, error) {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Pool{maxFailures: cfg.MaxFailures, cooldown: cfg.Cooldown, now: cfg.Now}
	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("proxy: %q has no host", raw)
		}
		p.entries = append(p.entries, &entry{url: u})
	}
	return p, nil
}

// Len is the number of proxies held, benched or not.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next healthy proxy, or nil when the pool is empty or
// every proxy is benched.
func (p *Pool) Next() *url.URL {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)

		if !e.disabledUntil.IsZero() && now.After(e.disabledUntil) {
			e.disabledUntil = time.Time{}
			e.failures = 0
		}
		if e.disabledUntil.IsZero() {
			return e.url
		}
	}
	return nil
}

// Report records the outcome of a request made through u.
func (p *Pool) Report(u *url.URL, ok bool) error {
	if u == nil {
		return errors.New("proxy: nil url")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(u)
	if e == nil {
		return ErrUnknown
	}
	if ok {
		e.successes++
		e.failures = 0
		return nil
	}
	e.failures++
	if e.failures >= p.maxFailures {
		e.disabledUntil = p.now().Add(p.cooldown)
	}
	return nil
}

// Stats is a point-in-time health view of one proxy.
type Stats struct {
	URL       string
	Successes int
	Failures  int
	Benched   bool
}

// Snapshot returns the health of every proxy in pool order. Credentials are
// redacted from the URLs.
func (p *Pool) Snapshot() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]Stats, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, Stats{
			URL:       e.url.Redacted(),
			Successes: e.successes,
			Failures:  e.failures,
			Benched:   !e.disabledUntil.IsZero() && !now.After(e.disabledUntil),
		})
	}
	return out
}

// must be called with the lock held.
func (p *Pool) find(u *url.URL) *entry {
	target := u.String()
	for _, e := range p.entries {
		if e.url.String() == target {
			return e
		}
	}
	return nil
}

type ctxKey struct{}

// WithProxy pins the proxy a request made with ctx should use.
func WithProxy(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromRequest is an http.Transport Proxy func that honours WithProxy.
// Requests without a pinned proxy go direct.
func FromRequest(req *http.Request) (*url.URL, error) {
	u, _ := req.Context().Value(ctxKey{}).(*url.URL)
	return u, nil
}
