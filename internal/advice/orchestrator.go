package advice

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

var tracer = otel.Tracer("advice")

// ErrNoFinancialData is the only hard failure of GenerateAdvice.
var ErrNoFinancialData = errors.New("no financial data available for this user")

// ContextSource declares whether the caller's snapshot is authoritative.
type ContextSource int

const (
	ContextProvided ContextSource = iota
	ContextMustRefresh
)

func (s ContextSource) String() string {
	if s == ContextMustRefresh {
		return "must_refresh"
	}
	return "provided"
}

// SnapshotBuilder is satisfied by *finance.ContextBuilder.
type SnapshotBuilder interface {
	Build(ctx context.Context, userID string) finance.Snapshot
}

type Request struct {
	UserID   string
	Message  string
	Snapshot finance.Snapshot
	Source   ContextSource
	Locale   string
	Currency string
}

// Attempt records one provider call made while producing a response.
type Attempt struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"duration_ms"`
}

type Response struct {
	Content      string             `json:"content"`
	Type         chat.MessageType   `json:"type"`
	QuickActions []chat.QuickAction `json:"quick_actions"`
	Provider     string             `json:"provider"`
	Model        string             `json:"model,omitempty"`
	Fallback     bool               `json:"fallback"`
	Attempts     []Attempt          `json:"attempts"`
	Snapshot     finance.Snapshot   `json:"-"`
}

type Orchestrator struct {
	providers  []Provider
	builder    SnapshotBuilder
	classifier Classifier
	timeout    time.Duration
	logger     *zap.Logger
}

type OrchestratorOption func(*Orchestrator)

func WithClassifier(classifier Classifier) OrchestratorOption {
	return func(o *Orchestrator) {
		if classifier != nil {
			o.classifier = classifier
		}
	}
}

// WithAttemptTimeout bounds every provider call. Zero disables the bound.
func WithAttemptTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.timeout = timeout
	}
}

func NewOrchestrator(providers []Provider, builder SnapshotBuilder, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		providers:  append([]Provider(nil), providers...),
		builder:    builder,
		classifier: KeywordClassifier{},
		timeout:    15 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProviderNames lists configured providers in attempt order.
func (o *Orchestrator) ProviderNames() []string {
	names := make([]string, 0, len(o.providers))
	for _, provider := range o.providers {
		names = append(names, provider.Name())
	}
	return names
}

// GenerateAdvice runs providers in order until one succeeds and falls back
// to a templated reply otherwise. It fails only with ErrNoFinancialData.
func (o *Orchestrator) GenerateAdvice(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.GenerateAdvice")
	defer span.End()
	span.SetAttributes(attribute.String("advice.context_source", req.Source.String()))

	snapshot := o.resolveSnapshot(ctx, req)
	if snapshot.IsEmpty() {
		span.SetStatus(codes.Error, ErrNoFinancialData.Error())
		return Response{}, ErrNoFinancialData
	}

	formatter := finance.NewFormatter(req.Locale, req.Currency)
	prompt := Prompt{
		System: BuildPrompt(snapshot, formatter),
		User:   strings.TrimSpace(req.Message),
	}

	attempts := make([]Attempt, 0, len(o.providers))
	for _, provider := range o.providers {
		result, elapsed := o.attempt(ctx, provider, prompt, snapshot)
		attempts = append(attempts, Attempt{
			Provider: result.Provider,
			Model:    result.Model,
			Success:  result.Success,
			Error:    result.Error,
			Duration: elapsed.Milliseconds(),
		})
		if !result.Success {
			o.logger.Warn("advice provider failed",
				zap.String("provider", result.Provider),
				zap.String("model", result.Model),
				zap.String("error", truncateForLog(result.Error, 300)),
			)
			continue
		}

		classified := o.classifier.Classify(result.Content)
		span.SetAttributes(attribute.String("advice.provider", result.Provider))
		return Response{
			Content:      result.Content,
			Type:         classified.Type,
			QuickActions: capActions(classified.QuickActions),
			Provider:     result.Provider,
			Model:        result.Model,
			Attempts:     attempts,
			Snapshot:     snapshot,
		}, nil
	}

	content, actions := fallbackAdvice(req.Message, snapshot, formatter)
	classified := o.classifier.Classify(content)
	o.logger.Info("advice served from fallback",
		zap.String("user_id", req.UserID),
		zap.Int("attempts", len(attempts)),
	)
	span.SetAttributes(attribute.String("advice.provider", FallbackProvider))
	return Response{
		Content:      content,
		Type:         classified.Type,
		QuickActions: actions,
		Provider:     FallbackProvider,
		Fallback:     true,
		Attempts:     attempts,
		Snapshot:     snapshot,
	}, nil
}

func (o *Orchestrator) resolveSnapshot(ctx context.Context, req Request) finance.Snapshot {
	snapshot := req.Snapshot
	if req.Source != ContextMustRefresh || o.builder == nil || strings.TrimSpace(req.UserID) == "" {
		return snapshot
	}
	refreshed := o.builder.Build(ctx, req.UserID)
	if refreshed.IsEmpty() && !snapshot.IsEmpty() {
		return snapshot
	}
	return refreshed
}

func (o *Orchestrator) attempt(ctx context.Context, provider Provider, prompt Prompt, snapshot finance.Snapshot) (Result, time.Duration) {
	attemptCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	started := time.Now()
	result := provider.Generate(attemptCtx, prompt, snapshot)
	if result.Provider == "" {
		result.Provider = provider.Name()
	}
	if result.Success && strings.TrimSpace(result.Content) == "" {
		result = failure(result.Provider, result.Model, "empty response content")
	}
	return result, time.Since(started)
}

func capActions(actions []chat.QuickAction) []chat.QuickAction {
	if actions == nil {
		return []chat.QuickAction{}
	}
	if len(actions) > 2 {
		return actions[:2]
	}
	return actions
}
