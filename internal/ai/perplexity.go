package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
)

// Perplexity completes prompts with the Perplexity chat API.
type Perplexity struct {
	client perplexity.Client
}

// NewPerplexity creates a Perplexity provider.
func NewPerplexity(cfg ProviderConfig) *Perplexity {
	opts := []perplexity.Option{perplexity.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, perplexity.WithBaseURL(cfg.BaseURL))
	}
	return &Perplexity{client: perplexity.NewClient(strings.TrimSpace(cfg.APIKey), opts...)}
}

func (p *Perplexity) Name() string { return ProviderPerplexity }

func (p *Perplexity) Complete(ctx context.Context, prompt string) (string, error) {
	temp, topP, maxTokens := Temperature, TopP, MaxTokens
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages:    []perplexity.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		var apiErr *perplexity.APIError
		if errors.As(err, &apiErr) {
			return "", resilience.StatusError("perplexity", apiErr.StatusCode, apiErr.Body)
		}
		return "", err
	}
	text := strings.TrimSpace(resp.Content())
	if text == "" {
		return "", eris.New("perplexity: empty response")
	}
	return text, nil
}
