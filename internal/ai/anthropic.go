package ai

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// Anthropic completes prompts with the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic provider. The SDK's own retries are
// disabled; the Chain retries.
func NewAnthropic(cfg ProviderConfig) *Anthropic {
	opts := []anthropic.Option{anthropic.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return NewAnthropicWithClient(anthropic.NewClient(strings.TrimSpace(cfg.APIKey), opts...), cfg.Model)
}

// NewAnthropicWithClient wraps an existing client.
func NewAnthropicWithClient(client anthropic.Client, model string) *Anthropic {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{client: client, model: model}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	temp := Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   MaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return "", resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return "", err
	}
	resp.Usage.Log(a.model, "complete")
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("anthropic: empty response")
	}
	return text, nil
}
