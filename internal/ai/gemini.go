package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, cfg ProviderConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

// Complete sends prompt as a single user turn with thinking disabled.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](Temperature),
		TopK:            genai.Ptr[float32](TopK),
		TopP:            genai.Ptr[float32](TopP),
		MaxOutputTokens: MaxTokens,
		CandidateCount:  1,
		ThinkingConfig:  &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	})
	if err != nil {
		return "", classifyGeminiErr(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("gemini: empty response")
	}
	return text, nil
}

func classifyGeminiErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Code) {
		return resilience.NewTransientError(eris.Wrap(err, "gemini: generate content"), apiErr.Code)
	}
	return eris.Wrap(err, "gemini: generate content")
}
