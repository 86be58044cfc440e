package advice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

type fakeProvider struct {
	name    string
	result  Result
	calls   int
	prompts []Prompt
	wait    bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, prompt Prompt, _ finance.Snapshot) Result {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.wait {
		<-ctx.Done()
		return failure(f.name, "", ctx.Err().Error())
	}
	result := f.result
	result.Provider = f.name
	return result
}

type fakeBuilder struct {
	snapshot finance.Snapshot
	calls    int
}

func (f *fakeBuilder) Build(context.Context, string) finance.Snapshot {
	f.calls++
	return f.snapshot
}

func failing(name string) *fakeProvider {
	return &fakeProvider{name: name, result: Result{Success: false, Error: name + " down"}}
}

func succeeding(name, content string) *fakeProvider {
	return &fakeProvider{name: name, result: Result{Success: true, Content: content, Model: name + "-model"}}
}

func TestGenerateAdviceStopsAtFirstSuccess(t *testing.T) {
	gateway := failing("gateway")
	vendorA := succeeding("openai", "Consider trimming your budget for dining.")
	vendorB := succeeding("gemini", "unused")

	orchestrator := NewOrchestrator([]Provider{gateway, vendorA, vendorB}, nil, zap.NewNop())
	resp, err := orchestrator.GenerateAdvice(context.Background(), Request{
		UserID:   "user-1",
		Message:  "How am I doing?",
		Snapshot: loadedSnapshot(),
		Source:   ContextProvided,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != "openai" || resp.Fallback {
		t.Fatalf("expected openai response, got %+v", resp)
	}
	if vendorB.calls != 0 {
		t.Fatalf("expected later providers to be skipped, got %d calls", vendorB.calls)
	}
	if len(resp.Attempts) != 2 || resp.Attempts[0].Success || !resp.Attempts[1].Success {
		t.Fatalf("unexpected attempts: %+v", resp.Attempts)
	}
	if resp.Type != chat.TypeRecommendation || len(resp.QuickActions) != 2 || resp.QuickActions[0].Type != chat.ActionViewBudget {
		t.Fatalf("expected budget classification, got %+v", resp)
	}
	if !strings.Contains(gateway.prompts[0].System, "$1,234.50") || gateway.prompts[0].User != "How am I doing?" {
		t.Fatalf("unexpected prompt: %+v", gateway.prompts[0])
	}
}

func TestGenerateAdviceFallbackEmbedsSnapshotValues(t *testing.T) {
	snapshot := finance.EmptySnapshot("user-1")
	snapshot.Loaded = true
	snapshot.TotalBalance = decimal.RequireFromString("1234.5")
	snapshot.MonthlyExpenses = decimal.RequireFromString("500")

	providers := []Provider{failing("gateway"), failing("openai"), failing("gemini")}
	resp, err := NewOrchestrator(providers, nil, zap.NewNop()).GenerateAdvice(context.Background(), Request{
		UserID:   "user-1",
		Message:  "Help me with my budget",
		Snapshot: snapshot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != FallbackProvider || !resp.Fallback {
		t.Fatalf("expected fallback response, got %+v", resp)
	}
	if !strings.Contains(resp.Content, "1,234.50") || !strings.Contains(resp.Content, "500") {
		t.Fatalf("expected snapshot values in fallback content, got %q", resp.Content)
	}
	if len(resp.QuickActions) != 2 || resp.QuickActions[0].Type != chat.ActionViewBudget || resp.QuickActions[1].Type != chat.ActionBudgetHelp {
		t.Fatalf("unexpected fallback actions: %+v", resp.QuickActions)
	}
	if len(resp.Attempts) != 3 {
		t.Fatalf("expected every provider attempted, got %+v", resp.Attempts)
	}
}

func TestGenerateAdviceFallbackTopics(t *testing.T) {
	cases := []struct {
		message string
		want    []chat.ActionType
	}{
		{message: "How much should I save?", want: []chat.ActionType{chat.ActionCreateGoal, chat.ActionSavingsPlan}},
		{message: "Any goal ideas?", want: []chat.ActionType{chat.ActionCreateGoal, chat.ActionSavingsPlan}},
		{message: "Hi", want: []chat.ActionType{chat.ActionViewBudget, chat.ActionCreateGoal}},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			resp, err := NewOrchestrator(nil, nil, zap.NewNop()).GenerateAdvice(context.Background(), Request{
				Message:  tc.message,
				Snapshot: loadedSnapshot(),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(resp.QuickActions) != 2 {
				t.Fatalf("expected two actions, got %+v", resp.QuickActions)
			}
			for i, want := range tc.want {
				if resp.QuickActions[i].Type != want {
					t.Fatalf("action %d: expected %q, got %q", i, want, resp.QuickActions[i].Type)
				}
			}
		})
	}
}

func TestGenerateAdviceSpendingQuestionWithoutProviders(t *testing.T) {
	snapshot := finance.EmptySnapshot("user-1")
	snapshot.Loaded = true
	snapshot.MonthlyExpenses = decimal.NewFromInt(2847)
	snapshot.Budgets = []finance.BudgetLine{{Name: "Groceries", TotalAmount: decimal.NewFromInt(600), PeriodType: "monthly"}}

	resp, err := NewOrchestrator(nil, nil, zap.NewNop()).GenerateAdvice(context.Background(), Request{
		UserID:   "user-1",
		Message:  "What's my spending this month?",
		Snapshot: snapshot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != FallbackProvider {
		t.Fatalf("expected fallback provider, got %q", resp.Provider)
	}
	if resp.Type != chat.TypeRecommendation && resp.Type != chat.TypeText {
		t.Fatalf("unexpected type %q", resp.Type)
	}
	found := false
	for _, action := range resp.QuickActions {
		if action.Type == chat.ActionViewBudget && action.Label == "View Budget Details" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected View Budget Details action, got %+v", resp.QuickActions)
	}
	if !strings.Contains(resp.Content, "$2,847.00") || !strings.Contains(resp.Content, "Groceries") {
		t.Fatalf("expected real values in content, got %q", resp.Content)
	}
}

func TestGenerateAdviceEmptySnapshotFails(t *testing.T) {
	provider := succeeding("openai", "hello")
	_, err := NewOrchestrator([]Provider{provider}, nil, zap.NewNop()).GenerateAdvice(context.Background(), Request{
		Message:  "hello",
		Snapshot: finance.EmptySnapshot(""),
	})
	if !errors.Is(err, ErrNoFinancialData) {
		t.Fatalf("expected ErrNoFinancialData, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("expected no provider calls")
	}
}

type emptySource struct{}

func (emptySource) ListAccounts(context.Context, string) ([]finance.Account, error) {
	return []finance.Account{}, nil
}

func (emptySource) ListTransactionsSince(context.Context, string, time.Time) ([]finance.Transaction, error) {
	return nil, nil
}

func (emptySource) ListActiveBudgets(context.Context, string) ([]finance.Budget, error) {
	return nil, nil
}

func (emptySource) ListOpenGoals(context.Context, string) ([]finance.Goal, error) {
	return nil, nil
}

func (emptySource) GetProfile(_ context.Context, userID string) (finance.Profile, error) {
	return finance.Profile{UserID: userID, DisplayName: "Sam"}, nil
}

func TestGenerateAdviceRefreshWithoutRowsFails(t *testing.T) {
	provider := succeeding("openai", "hello")
	builder := finance.NewContextBuilder(emptySource{}, zap.NewNop())
	_, err := NewOrchestrator([]Provider{provider}, builder, zap.NewNop()).GenerateAdvice(context.Background(), Request{
		UserID:  "user-1",
		Message: "how am I doing?",
		Source:  ContextMustRefresh,
	})
	if !errors.Is(err, ErrNoFinancialData) {
		t.Fatalf("expected ErrNoFinancialData, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("expected no provider calls, got %d", provider.calls)
	}
}

func TestGenerateAdviceContextSource(t *testing.T) {
	t.Run("provided skips refresh", func(t *testing.T) {
		builder := &fakeBuilder{snapshot: loadedSnapshot()}
		_, err := NewOrchestrator(nil, builder, zap.NewNop()).GenerateAdvice(context.Background(), Request{
			UserID:   "user-1",
			Message:  "hi",
			Snapshot: finance.EmptySnapshot("user-1"),
			Source:   ContextProvided,
		})
		if !errors.Is(err, ErrNoFinancialData) {
			t.Fatalf("expected ErrNoFinancialData, got %v", err)
		}
		if builder.calls != 0 {
			t.Fatalf("expected no refresh, got %d", builder.calls)
		}
	})

	t.Run("must refresh rebuilds", func(t *testing.T) {
		builder := &fakeBuilder{snapshot: loadedSnapshot()}
		resp, err := NewOrchestrator(nil, builder, zap.NewNop()).GenerateAdvice(context.Background(), Request{
			UserID:  "user-1",
			Message: "hi",
			Source:  ContextMustRefresh,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if builder.calls != 1 || !resp.Snapshot.TotalBalance.Equal(decimal.RequireFromString("1234.5")) {
			t.Fatalf("expected refreshed snapshot, calls=%d snapshot=%+v", builder.calls, resp.Snapshot)
		}
	})

	t.Run("empty refresh keeps provided data", func(t *testing.T) {
		builder := &fakeBuilder{snapshot: finance.EmptySnapshot("user-1")}
		resp, err := NewOrchestrator(nil, builder, zap.NewNop()).GenerateAdvice(context.Background(), Request{
			UserID:   "user-1",
			Message:  "hi",
			Snapshot: loadedSnapshot(),
			Source:   ContextMustRefresh,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Snapshot.IsEmpty() {
			t.Fatalf("expected provided snapshot to survive empty refresh")
		}
	})

	t.Run("refresh without user is skipped", func(t *testing.T) {
		builder := &fakeBuilder{snapshot: loadedSnapshot()}
		_, err := NewOrchestrator(nil, builder, zap.NewNop()).GenerateAdvice(context.Background(), Request{
			Message: "hi",
			Source:  ContextMustRefresh,
		})
		if !errors.Is(err, ErrNoFinancialData) || builder.calls != 0 {
			t.Fatalf("expected no refresh and ErrNoFinancialData, calls=%d err=%v", builder.calls, err)
		}
	})
}

func TestGenerateAdviceBoundsEachAttempt(t *testing.T) {
	slow := &fakeProvider{name: "gateway", wait: true}
	fast := succeeding("openai", "All good.")

	orchestrator := NewOrchestrator([]Provider{slow, fast}, nil, zap.NewNop(), WithAttemptTimeout(20*time.Millisecond))
	resp, err := orchestrator.GenerateAdvice(context.Background(), Request{Message: "hi", Snapshot: loadedSnapshot()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != "openai" {
		t.Fatalf("expected second provider after timeout, got %q", resp.Provider)
	}
	if resp.Attempts[0].Success || resp.Attempts[0].Error == "" {
		t.Fatalf("expected recorded timeout, got %+v", resp.Attempts[0])
	}
}

func TestGenerateAdviceTreatsBlankSuccessAsFailure(t *testing.T) {
	blank := succeeding("gateway", "   ")
	resp, err := NewOrchestrator([]Provider{blank}, nil, zap.NewNop()).GenerateAdvice(context.Background(), Request{
		Message:  "hi",
		Snapshot: loadedSnapshot(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Fallback {
		t.Fatalf("expected fallback after blank content, got %+v", resp)
	}
}

type fixedClassifier struct{}

func (fixedClassifier) Classify(string) Classification {
	return Classification{Type: chat.TypeChart, QuickActions: []chat.QuickAction{{Type: "a"}, {Type: "b"}, {Type: "c"}}}
}

func TestGenerateAdviceUsesInjectedClassifier(t *testing.T) {
	resp, err := NewOrchestrator([]Provider{succeeding("openai", "text")}, nil, zap.NewNop(), WithClassifier(fixedClassifier{})).
		GenerateAdvice(context.Background(), Request{Message: "hi", Snapshot: loadedSnapshot()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Type != chat.TypeChart || len(resp.QuickActions) != 2 {
		t.Fatalf("expected injected classification capped at two actions, got %+v", resp)
	}
}
