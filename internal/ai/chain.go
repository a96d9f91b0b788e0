package ai

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Chain calls the primary provider and, when it fails or is unconfigured,
// the secondary. Each provider call runs through the guard's retry policy
// and per-provider breaker.
type Chain struct {
	guard     *resilience.Guard
	primary   Completer
	secondary Completer
}

// NewChain builds a Chain. Either provider may be nil. A nil guard uses the
// default retry and breaker settings.
func NewChain(guard *resilience.Guard, primary, secondary Completer) *Chain {
	if guard == nil {
		guard = resilience.NewGuard(resilience.DefaultRetryConfig(), resilience.DefaultBreakerConfig())
	}
	return &Chain{guard: guard, primary: primary, secondary: secondary}
}

func (c *Chain) Name() string { return "chain" }

// Configured reports whether at least one provider is available.
func (c *Chain) Configured() bool {
	return c.primary != nil || c.secondary != nil
}

// Providers lists the configured provider names in call order.
func (c *Chain) Providers() []string {
	var names []string
	for _, p := range []Completer{c.primary, c.secondary} {
		if p != nil {
			names = append(names, p.Name())
		}
	}
	return names
}

// Complete returns the first provider's successful answer.
func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNoProviderKeys
	}

	var primaryErr error
	if c.primary != nil {
		text, err := c.call(ctx, c.primary, prompt)
		if err == nil {
			return text, nil
		}
		primaryErr = err
		if c.secondary == nil {
			return "", eris.Wrapf(err, "ai: %s failed", c.primary.Name())
		}
		zap.L().Warn("ai: primary provider failed, falling back",
			zap.String("primary", c.primary.Name()),
			zap.String("secondary", c.secondary.Name()),
			zap.Error(err),
		)
	}

	text, err := c.call(ctx, c.secondary, prompt)
	if err != nil {
		if primaryErr != nil {
			return "", eris.Wrapf(err, "ai: both providers failed (%s: %v)", c.primary.Name(), primaryErr)
		}
		return "", eris.Wrapf(err, "ai: %s failed", c.secondary.Name())
	}
	return text, nil
}

func (c *Chain) call(ctx context.Context, p Completer, prompt string) (string, error) {
	return resilience.Run(ctx, c.guard, p.Name(), "complete", func(ctx context.Context) (string, error) {
		return p.Complete(ctx, prompt)
	})
}
