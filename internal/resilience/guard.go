package resilience

import (
	"context"
	"sync"
)

// Guard holds one breaker per named service and applies the shared retry
// policy inside it.
type Guard struct {
	retry   RetryConfig
	breaker BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGuard builds a Guard.
func NewGuard(retry RetryConfig, breaker BreakerConfig) *Guard {
	return &Guard{retry: retry, breaker: breaker, breakers: make(map[string]*Breaker)}
}

// Breaker returns the breaker for service, creating it on first use.
func (g *Guard) Breaker(service string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[service]
	if !ok {
		b = NewBreaker(service, g.breaker)
		g.breakers[service] = b
	}
	return b
}

// States snapshots every breaker.
func (g *Guard) States() map[string]BreakerState {
	g.mu.Lock()
	names := make([]string, 0, len(g.breakers))
	for name := range g.breakers {
		names = append(names, name)
	}
	g.mu.Unlock()

	out := make(map[string]BreakerState, len(names))
	for _, name := range names {
		out[name] = g.Breaker(name).State()
	}
	return out
}

// Run retries fn with the guard's policy. The breaker sees one result per
// Run, so a call that eventually succeeds does not count as a failure.
func Run[T any](ctx context.Context, g *Guard, service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := g.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger(service, operation)
	}
	return Call(ctx, g.Breaker(service), func(ctx context.Context) (T, error) {
		return DoVal(ctx, cfg, fn)
	})
}
