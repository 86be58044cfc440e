package advice

import (
	"context"
	"strings"

	"finpilot/backend/internal/finance"
)

const (
	// DefaultTemperature and DefaultMaxTokens are the sampling bounds shared by
	// every provider.
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Prompt is the system/user message pair handed to a provider.
type Prompt struct {
	System string
	User   string
}

// Result is the uniform outcome of one provider call. Providers report
// failures here instead of returning errors.
type Result struct {
	Success  bool   `json:"success"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt, snapshot finance.Snapshot) Result
}

// SamplingOptions are applied to every request a provider sends. A nil or
// negative Temperature falls back to DefaultTemperature; zero is kept.
type SamplingOptions struct {
	Temperature *float32
	MaxTokens   int
}

// Temperature returns a pointer for SamplingOptions.Temperature.
func Temperature(value float64) *float32 {
	t := float32(value)
	return &t
}

func (o SamplingOptions) normalized() SamplingOptions {
	if o.Temperature == nil || *o.Temperature < 0 {
		o.Temperature = Temperature(DefaultTemperature)
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

func (o SamplingOptions) temperature() float32 {
	if o.Temperature == nil {
		return DefaultTemperature
	}
	return *o.Temperature
}

func failure(provider, model, detail string) Result {
	return Result{
		Success:  false,
		Error:    strings.TrimSpace(detail),
		Provider: provider,
		Model:    model,
	}
}

func success(provider, model, content string) Result {
	content = strings.TrimSpace(content)
	if content == "" {
		return failure(provider, model, "empty response content")
	}
	return Result{
		Success:  true,
		Content:  content,
		Provider: provider,
		Model:    model,
	}
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}
