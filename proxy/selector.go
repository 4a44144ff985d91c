// Package proxy implements upstream proxy selection for hub requests.
//
// The engine talks to a single remote hub, so there is one pool of zero or
// more proxy endpoints. A nil *Selector is valid and falls back to the
// environment proxy settings.
package proxy

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sync"
)

// Strategy selects how the next endpoint is chosen.
type Strategy string

const (
	// StrategyRoundRobin cycles through endpoints in order.
	StrategyRoundRobin Strategy = "round_robin"
	// StrategyRandom picks uniformly at random.
	StrategyRandom Strategy = "random"
)

// Selector rotates across configured upstream proxies.
// Thread-safe for concurrent access.
type Selector struct {
	mu        sync.Mutex
	strategy  Strategy
	endpoints []*url.URL
	rrIndex   int64
}

// NewSelector creates a selector over the given proxy URLs.
// Returns an error for an empty list, an invalid URL, or an unknown strategy.
func NewSelector(strategy Strategy, proxies []string) (*Selector, error) {
	if len(proxies) == 0 {
		return nil, fmt.Errorf("proxy selector requires at least one endpoint")
	}
	switch strategy {
	case StrategyRoundRobin, StrategyRandom:
	default:
		return nil, fmt.Errorf("unknown proxy strategy %q", strategy)
	}

	endpoints := make([]*url.URL, 0, len(proxies))
	for _, p := range proxies {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", p, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q: missing scheme or host", p)
		}
		endpoints = append(endpoints, u)
	}

	return &Selector{strategy: strategy, endpoints: endpoints}, nil
}

// Next returns the endpoint the selector would use for the next request.
// The rotation counter advances only when commit is true, so dry-run
// inspection does not perturb live selection.
func (s *Selector) Next(commit bool) (*url.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx int
	switch s.strategy {
	case StrategyRoundRobin:
		idx = int(s.rrIndex % int64(len(s.endpoints)))
		if commit {
			s.rrIndex++
		}
	case StrategyRandom:
		var err error
		idx, err = randomIndex(len(s.endpoints))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown strategy %q", s.strategy)
	}

	// Copy so callers cannot mutate shared state.
	u := *s.endpoints[idx]
	return &u, nil
}

// randomIndex picks an index uniformly at random.
func randomIndex(n int) (int, error) {
	if n == 1 {
		return 0, nil
	}
	bigIdx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random selection failed: %w", err)
	}
	return int(bigIdx.Int64()), nil
}

// ProxyFunc returns a function suitable for http.Transport.Proxy.
// A nil selector defers to the process environment (HTTP_PROXY et al).
func (s *Selector) ProxyFunc() func(*http.Request) (*url.URL, error) {
	if s == nil {
		return http.ProxyFromEnvironment
	}
	return func(*http.Request) (*url.URL, error) {
		return s.Next(true)
	}
}

// Stats reports selector state for inspection surfaces.
type Stats struct {
	Strategy        Strategy
	Endpoints       int
	RoundRobinIndex int64
}

// Stats returns current selector statistics.
// Safe on a nil selector, which reports zero endpoints.
func (s *Selector) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Strategy:        s.strategy,
		Endpoints:       len(s.endpoints),
		RoundRobinIndex: s.rrIndex,
	}
}
