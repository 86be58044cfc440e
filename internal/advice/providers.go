package advice

import (
	"context"

	"go.uber.org/zap"

	"finpilot/backend/internal/config"
)

// BuildProviders constructs every configured provider in attempt order:
// gateway, OpenAI, Gemini, Ark. Providers without credentials are skipped.
func BuildProviders(ctx context.Context, cfg config.Config, logger *zap.Logger) []Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	sampling := SamplingOptions{
		Temperature: Temperature(cfg.AITemperature),
		MaxTokens:   cfg.AIMaxOutputTokens,
	}

	providers := make([]Provider, 0, 4)
	if len(cfg.GatewayAPIKeys) > 0 {
		gateway, err := NewGatewayProvider(GatewayConfig{
			BaseURL:     cfg.GatewayBaseURL,
			APIKeys:     cfg.GatewayAPIKeys,
			Models:      cfg.GatewayModels,
			KeyCooldown: cfg.GatewayKeyCooldown(),
			MaxAttempts: cfg.GatewayMaxAttempts,
			Sampling:    sampling,
		}, logger)
		providers = appendProvider(providers, gateway, err, GatewayProviderName, logger)
	}
	if cfg.OpenAIAPIKey != "" {
		vendorA, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIModel,
			Sampling: sampling,
		})
		providers = appendProvider(providers, vendorA, err, OpenAIProviderName, logger)
	}
	if cfg.GeminiAPIKey != "" {
		vendorB, err := NewGeminiProvider(ctx, GeminiConfig{
			APIKey:   cfg.GeminiAPIKey,
			BaseURL:  cfg.GeminiBaseURL,
			Model:    cfg.GeminiModel,
			Sampling: sampling,
		})
		providers = appendProvider(providers, vendorB, err, GeminiProviderName, logger)
	}
	if cfg.ArkAPIKey != "" {
		ark, err := NewArkProvider(ctx, ArkConfig{
			APIKey:   cfg.ArkAPIKey,
			BaseURL:  cfg.ArkBaseURL,
			Model:    cfg.ArkModel,
			Sampling: sampling,
		})
		providers = appendProvider(providers, ark, err, ArkProviderName, logger)
	}

	names := make([]string, 0, len(providers))
	for _, provider := range providers {
		names = append(names, provider.Name())
	}
	logger.Info("advice providers configured", zap.Strings("providers", names))
	return providers
}

func appendProvider[P Provider](providers []Provider, provider P, err error, name string, logger *zap.Logger) []Provider {
	if err != nil {
		logger.Warn("advice provider disabled", zap.String("provider", name), zap.Error(err))
		return providers
	}
	return append(providers, provider)
}
