package advice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"finpilot/backend/internal/finance"
)

const GeminiProviderName = "gemini"

type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Sampling   SamplingOptions
	HTTPClient *http.Client
}

// GeminiProvider issues a single-turn generateContent call: the system prompt
// and the user text travel together in one user content.
type GeminiProvider struct {
	client   *genai.Client
	model    string
	sampling SamplingOptions
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}
	model := strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if model == "" {
		return nil, errors.New("GEMINI_MODEL is not configured")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(baseURL, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:   client,
		model:    model,
		sampling: cfg.Sampling.normalized(),
	}, nil
}

func (p *GeminiProvider) Name() string { return GeminiProviderName }

func (p *GeminiProvider) Generate(ctx context.Context, prompt Prompt, _ finance.Snapshot) Result {
	temperature := p.sampling.temperature()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(singleTurnText(prompt)), &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(p.sampling.MaxTokens),
	})
	if err != nil {
		return failure(GeminiProviderName, p.model, describeGeminiError(err))
	}
	return success(GeminiProviderName, p.model, candidateText(resp))
}

// singleTurnText joins the system prompt ahead of the user text.
func singleTurnText(prompt Prompt) string {
	system := strings.TrimSpace(prompt.System)
	user := strings.TrimSpace(prompt.User)
	if system == "" {
		return user
	}
	return system + "\n\nUser question: " + user
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		parts := make([]string, 0, len(candidate.Content.Parts))
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return ""
}

func describeGeminiError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("status %d: %s", apiErr.Code, truncateForLog(apiErr.Message, 300))
	}
	return truncateForLog(err.Error(), 300)
}
