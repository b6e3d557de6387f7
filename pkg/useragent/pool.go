// Package useragent supplies browser User-Agent strings for HTML search
// providers that reject non-browser clients.
package useragent

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
)

// DefaultPool is a set of current desktop browser User-Agents.
var DefaultPool = []string{
	// Chrome Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	// Chrome Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	// Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	// Safari Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
	// Edge Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Strategy selects how Pick walks the pool.
type Strategy string

const (
	Sequential Strategy = "sequential"
	Random     Strategy = "random"
)

// ParseStrategy maps a config value to a Strategy. Empty means random.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return Random, nil
	case Sequential, Random:
		return st, nil
	default:
		return "", fmt.Errorf("useragent: unknown strategy %q", s)
	}
}

// Pool hands out User-Agents. It is safe for concurrent use.
type Pool struct {
	uas      []string
	strategy Strategy
	counter  atomic.Uint64
}

// NewPool copies uas, or DefaultPool when uas is empty, and blank entries are dropped.
func NewPool(uas []string, strategy Strategy) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	kept := make([]string, 0, len(uas))
	for _, ua := range uas {
		if ua = strings.TrimSpace(ua); ua != "" {
			kept = append(kept, ua)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, DefaultPool...)
	}
	return &Pool{uas: kept, strategy: strategy}
}

// Pick returns a User-Agent according to the pool's strategy.
func (p *Pool) Pick() string {
	if p.strategy == Sequential {
		return p.next()
	}
	return p.random()
}

func (p *Pool) next() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

func (p *Pool) random() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.next()
	}
	return p.uas[n.Int64()]
}

// Len is the number of User-Agents in the pool.
func (p *Pool) Len() int {
	return len(p.uas)
}
