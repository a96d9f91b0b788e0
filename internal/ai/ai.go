// Package ai drafts text through LLM completion providers. A Chain tries a
// primary provider and falls back to a secondary one.
package ai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// ErrNoProviderKeys means neither the primary nor the secondary provider has
// an API key.
var ErrNoProviderKeys = eris.New("no completion provider configured: add a Gemini or OpenAI API key")

// Completer turns a prompt into generated text.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Sampling parameters shared by every provider.
const (
	Temperature = 0.7
	TopK        = 40
	TopP        = 0.95
	MaxTokens   = 1000
)

// Provider names.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
)

// ProviderConfig configures a single provider. An empty APIKey leaves the
// provider unconfigured.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// Config selects the primary and secondary providers.
type Config struct {
	Primary    string                   `yaml:"primary" mapstructure:"primary"`
	Secondary  string                   `yaml:"secondary" mapstructure:"secondary"`
	Gemini     ProviderConfig           `yaml:"gemini" mapstructure:"gemini"`
	OpenAI     ProviderConfig           `yaml:"openai" mapstructure:"openai"`
	Anthropic  ProviderConfig           `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity ProviderConfig           `yaml:"perplexity" mapstructure:"perplexity"`
	Retry      resilience.RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker    resilience.BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// Provider returns the settings for name.
func (c Config) Provider(name string) (ProviderConfig, error) {
	switch strings.ToLower(name) {
	case ProviderGemini:
		return c.Gemini, nil
	case ProviderOpenAI:
		return c.OpenAI, nil
	case ProviderAnthropic:
		return c.Anthropic, nil
	case ProviderPerplexity:
		return c.Perplexity, nil
	default:
		return ProviderConfig{}, eris.Errorf("ai: unknown provider %q", name)
	}
}

// NewCompleter builds the named provider. It returns nil, nil when the
// provider has no API key.
func NewCompleter(ctx context.Context, name string, cfg ProviderConfig) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil
	}
	switch strings.ToLower(name) {
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	case ProviderPerplexity:
		return NewPerplexity(cfg), nil
	default:
		return nil, eris.Errorf("ai: unknown provider %q", name)
	}
}

// Build wires the configured primary and secondary providers into a Chain.
// Missing keys are not an error here; the Chain reports ErrNoProviderKeys
// when it is used without any provider.
func Build(ctx context.Context, cfg Config) (*Chain, error) {
	primary, err := buildSlot(ctx, cfg, cfg.Primary)
	if err != nil {
		return nil, err
	}
	secondary, err := buildSlot(ctx, cfg, cfg.Secondary)
	if err != nil {
		return nil, err
	}
	guard := resilience.NewGuard(cfg.Retry, cfg.Breaker)
	return NewChain(guard, primary, secondary), nil
}

func buildSlot(ctx context.Context, cfg Config, name string) (Completer, error) {
	if name == "" {
		return nil, nil
	}
	pc, err := cfg.Provider(name)
	if err != nil {
		return nil, err
	}
	c, err := NewCompleter(ctx, name, pc)
	if err != nil {
		return nil, eris.Wrapf(err, "ai: build %s", name)
	}
	return c, nil
}
