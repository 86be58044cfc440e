package advice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"finpilot/backend/internal/finance"
)

const OpenAIProviderName = "openai"

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Sampling   SamplingOptions
	HTTPClient *http.Client
}

// OpenAIProvider sends one chat completion per Generate call.
type OpenAIProvider struct {
	client   *openai.Client
	model    string
	sampling SamplingOptions
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not configured")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("OPENAI_MODEL is not configured")
	}
	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(openAIClientConfig(apiKey, cfg.BaseURL, cfg.HTTPClient)),
		model:    model,
		sampling: cfg.Sampling.normalized(),
	}, nil
}

func (p *OpenAIProvider) Name() string { return OpenAIProviderName }

func (p *OpenAIProvider) Generate(ctx context.Context, prompt Prompt, _ finance.Snapshot) Result {
	content, err := createChatCompletion(ctx, p.client, p.model, prompt, p.sampling)
	if err != nil {
		return failure(OpenAIProviderName, p.model, describeOpenAIError(err))
	}
	return success(OpenAIProviderName, p.model, content)
}

func openAIClientConfig(apiKey, baseURL string, httpClient *http.Client) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		cfg.BaseURL = trimmed
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return cfg
}

func chatMessages(prompt Prompt) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := strings.TrimSpace(prompt.System); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(prompt.User)})
	return messages
}

func createChatCompletion(ctx context.Context, client *openai.Client, model string, prompt Prompt, sampling SamplingOptions) (string, error) {
	temperature := sampling.temperature()
	if temperature == 0 {
		// the request field is omitempty, so a literal zero would not be sent
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    chatMessages(prompt),
		Temperature: temperature,
		MaxTokens:   sampling.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty response content")
	}
	return content, nil
}

// statusCodeOf extracts the HTTP status from go-openai errors, or 0.
func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func describeOpenAIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, truncateForLog(apiErr.Message, 300))
	}
	if status := statusCodeOf(err); status > 0 {
		return fmt.Sprintf("status %d: %s", status, truncateForLog(err.Error(), 300))
	}
	return truncateForLog(err.Error(), 300)
}
