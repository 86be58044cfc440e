package advice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"finpilot/backend/internal/finance"
)

const (
	GatewayProviderName = "gateway"

	defaultKeyCooldown        = time.Minute
	defaultGatewayMaxAttempts = 6
	revokedKeyCooldownFactor  = 10
)

type GatewayConfig struct {
	BaseURL     string
	APIKeys     []string
	Models      []string
	KeyCooldown time.Duration
	MaxAttempts int
	Sampling    SamplingOptions
	HTTPClient  *http.Client
}

// GatewayProvider rotates keys and models behind one OpenAI-compatible
// endpoint. Models are tried in order; keys round-robin from a shared cursor.
type GatewayProvider struct {
	clients     []*openai.Client
	models      []string
	cooldown    time.Duration
	maxAttempts int
	sampling    SamplingOptions
	cooling     *cache.Cache
	cursor      atomic.Uint64
	logger      *zap.Logger
}

type gatewayFailure int

const (
	failureRateLimited gatewayFailure = iota
	failureKeyRejected
	failureModelUnusable
	failureUpstream
)

func NewGatewayProvider(cfg GatewayConfig, logger *zap.Logger) (*GatewayProvider, error) {
	keys := compact(cfg.APIKeys)
	if len(keys) == 0 {
		return nil, errors.New("GATEWAY_API_KEYS is not configured")
	}
	models := compact(cfg.Models)
	if len(models) == 0 {
		return nil, errors.New("GATEWAY_MODELS is empty")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("GATEWAY_BASE_URL is not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cooldown := cfg.KeyCooldown
	if cooldown <= 0 {
		cooldown = defaultKeyCooldown
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultGatewayMaxAttempts
	}

	clients := make([]*openai.Client, 0, len(keys))
	for _, key := range keys {
		clients = append(clients, openai.NewClientWithConfig(openAIClientConfig(key, cfg.BaseURL, cfg.HTTPClient)))
	}
	return &GatewayProvider{
		clients:     clients,
		models:      models,
		cooldown:    cooldown,
		maxAttempts: maxAttempts,
		sampling:    cfg.Sampling.normalized(),
		cooling:     cache.New(cooldown, 2*cooldown),
		logger:      logger,
	}, nil
}

func (p *GatewayProvider) Name() string { return GatewayProviderName }

func (p *GatewayProvider) Generate(ctx context.Context, prompt Prompt, _ finance.Snapshot) Result {
	attempts := 0
	lastModel := ""
	lastErr := "all gateway keys are cooling down"

	for _, model := range p.models {
		start := int(p.cursor.Add(1) - 1)
	keys:
		for offset := 0; offset < len(p.clients); offset++ {
			if attempts >= p.maxAttempts {
				return failure(GatewayProviderName, lastModel, fmt.Sprintf("gave up after %d attempts: %s", attempts, lastErr))
			}
			index := (start + offset) % len(p.clients)
			if p.isCooling(index) {
				continue
			}

			attempts++
			lastModel = model
			content, err := createChatCompletion(ctx, p.clients[index], model, prompt, p.sampling)
			if err == nil {
				return success(GatewayProviderName, model, content)
			}
			lastErr = describeOpenAIError(err)
			if ctx.Err() != nil {
				return failure(GatewayProviderName, model, lastErr)
			}

			switch classifyGatewayError(err) {
			case failureRateLimited:
				p.coolDown(index, p.cooldown)
				p.logger.Warn("gateway key rate limited", zap.Int("key_index", index), zap.String("model", model))
			case failureKeyRejected:
				p.coolDown(index, p.cooldown*revokedKeyCooldownFactor)
				p.logger.Warn("gateway key rejected", zap.Int("key_index", index), zap.String("model", model))
			default:
				p.logger.Warn("gateway model failed",
					zap.Int("key_index", index),
					zap.String("model", model),
					zap.String("error", lastErr),
				)
				break keys
			}
		}
	}
	return failure(GatewayProviderName, lastModel, lastErr)
}

func (p *GatewayProvider) isCooling(index int) bool {
	_, found := p.cooling.Get(strconv.Itoa(index))
	return found
}

func (p *GatewayProvider) coolDown(index int, d time.Duration) {
	p.cooling.Set(strconv.Itoa(index), struct{}{}, d)
}

func classifyGatewayError(err error) gatewayFailure {
	switch status := statusCodeOf(err); {
	case status == http.StatusTooManyRequests:
		return failureRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusPaymentRequired:
		return failureKeyRejected
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return failureModelUnusable
	default:
		return failureUpstream
	}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
