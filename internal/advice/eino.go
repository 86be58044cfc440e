package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"finpilot/backend/internal/finance"
)

const ArkProviderName = "ark"

// EinoProvider adapts any eino chat model to the Provider contract.
type EinoProvider struct {
	name     string
	model    string
	chat     model.BaseChatModel
	sampling SamplingOptions
}

func NewEinoProvider(name, modelName string, chat model.BaseChatModel, sampling SamplingOptions) (*EinoProvider, error) {
	if chat == nil {
		return nil, errors.New("chat model is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "eino"
	}
	return &EinoProvider{
		name:     name,
		model:    strings.TrimSpace(modelName),
		chat:     chat,
		sampling: sampling.normalized(),
	}, nil
}

type ArkConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Sampling SamplingOptions
}

func NewArkProvider(ctx context.Context, cfg ArkConfig) (*EinoProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("ARK_API_KEY is not configured")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, errors.New("ARK_MODEL is not configured")
	}
	sampling := cfg.Sampling.normalized()
	temperature := sampling.temperature()
	maxTokens := sampling.MaxTokens
	chat, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     strings.TrimSpace(cfg.BaseURL),
		APIKey:      apiKey,
		Model:       modelName,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}
	return NewEinoProvider(ArkProviderName, modelName, chat, sampling)
}

func (p *EinoProvider) Name() string { return p.name }

func (p *EinoProvider) Generate(ctx context.Context, prompt Prompt, _ finance.Snapshot) Result {
	messages := make([]*schema.Message, 0, 2)
	if system := strings.TrimSpace(prompt.System); system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(strings.TrimSpace(prompt.User)))

	reply, err := p.chat.Generate(ctx, messages,
		model.WithTemperature(p.sampling.temperature()),
		model.WithMaxTokens(p.sampling.MaxTokens),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failure(p.name, p.model, "request timed out")
		}
		return failure(p.name, p.model, truncateForLog(err.Error(), 300))
	}
	if reply == nil {
		return failure(p.name, p.model, "empty response content")
	}
	return success(p.name, p.model, reply.Content)
}
