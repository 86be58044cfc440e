package actions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

type fakeWriter struct {
	goals   []finance.Goal
	budgets []finance.Budget
	err     error
}

func (f *fakeWriter) CreateGoal(_ context.Context, goal finance.Goal) (finance.Goal, error) {
	if f.err != nil {
		return finance.Goal{}, f.err
	}
	goal.ID = "goal-1"
	f.goals = append(f.goals, goal)
	return goal, nil
}

func (f *fakeWriter) CreateBudget(_ context.Context, budget finance.Budget) (finance.Budget, error) {
	if f.err != nil {
		return finance.Budget{}, f.err
	}
	budget.ID = "budget-1"
	f.budgets = append(f.budgets, budget)
	return budget, nil
}

func action(t chat.ActionType) chat.QuickAction {
	return chat.QuickAction{Label: string(t), Type: t}
}

func TestApplyNavigationActionsDoNotWrite(t *testing.T) {
	writer := &fakeWriter{}
	executor := NewExecutor(writer, zap.NewNop())
	for _, actionType := range []chat.ActionType{
		chat.ActionViewBudget, chat.ActionBudgetHelp, chat.ActionSavingsPlan, chat.ActionSetAlert,
		chat.ActionInvestmentGuide, chat.ActionRiskAssessment, chat.ActionViewProgress,
	} {
		t.Run(string(actionType), func(t *testing.T) {
			result := executor.Apply(context.Background(), action(actionType), "", Extra{})
			if !result.OK || result.NavigateTo == "" {
				t.Fatalf("expected navigation hint, got %+v", result)
			}
		})
	}
	if len(writer.goals) != 0 || len(writer.budgets) != 0 {
		t.Fatalf("navigation actions must not write")
	}
}

func TestApplyCreateGoalDefaults(t *testing.T) {
	writer := &fakeWriter{}
	result := NewExecutor(writer, zap.NewNop()).Apply(context.Background(), action(chat.ActionCreateGoal), "user-1", Extra{})
	if !result.OK {
		t.Fatalf("expected ok, got %+v", result)
	}
	if len(writer.goals) != 1 {
		t.Fatalf("expected one goal written, got %d", len(writer.goals))
	}
	goal := writer.goals[0]
	if goal.UserID != "user-1" || goal.Name != DefaultGoalName {
		t.Fatalf("unexpected goal owner/name: %+v", goal)
	}
	if !goal.CurrentAmount.IsZero() || !goal.TargetAmount.IsZero() || goal.IsAchieved {
		t.Fatalf("unexpected goal defaults: %+v", goal)
	}
	if created, ok := result.Data.(finance.Goal); !ok || created.ID != "goal-1" {
		t.Fatalf("expected created goal in data, got %#v", result.Data)
	}
}

func TestApplySetGoalHonorsExtra(t *testing.T) {
	writer := &fakeWriter{}
	target := decimal.NewFromInt(2500)
	result := NewExecutor(writer, zap.NewNop()).Apply(context.Background(), action(chat.ActionSetGoal), "user-1", Extra{
		Name:         "Vacation",
		TargetAmount: &target,
	})
	if !result.OK || writer.goals[0].Name != "Vacation" || !writer.goals[0].TargetAmount.Equal(target) {
		t.Fatalf("expected overrides applied, got %+v / %+v", result, writer.goals)
	}
}

func TestApplyCreateBudgetDefaults(t *testing.T) {
	writer := &fakeWriter{}
	result := NewExecutor(writer, zap.NewNop()).Apply(context.Background(), action(chat.ActionCreateBudget), "user-1", Extra{})
	if !result.OK || len(writer.budgets) != 1 {
		t.Fatalf("expected budget written, got %+v", result)
	}
	budget := writer.budgets[0]
	if budget.PeriodType != DefaultBudgetPeriod || !budget.IsActive || budget.Name != DefaultBudgetName || budget.StartDate.IsZero() {
		t.Fatalf("unexpected budget defaults: %+v", budget)
	}
}

func TestApplyWriteRequiresUser(t *testing.T) {
	writer := &fakeWriter{}
	executor := NewExecutor(writer, zap.NewNop())
	for _, actionType := range []chat.ActionType{chat.ActionCreateGoal, chat.ActionSetGoal, chat.ActionCreateBudget} {
		result := executor.Apply(context.Background(), action(actionType), "  ", Extra{})
		if result.OK || result.Error != ErrUserRequired.Error() {
			t.Fatalf("%s: expected user required failure, got %+v", actionType, result)
		}
	}
	if len(writer.goals) != 0 || len(writer.budgets) != 0 {
		t.Fatalf("expected no records without a user")
	}
}

func TestApplyReportsWriteFailures(t *testing.T) {
	writer := &fakeWriter{err: errors.New("insert refused")}
	result := NewExecutor(writer, zap.NewNop()).Apply(context.Background(), action(chat.ActionCreateBudget), "user-1", Extra{})
	if result.OK || !strings.Contains(result.Error, "insert refused") {
		t.Fatalf("expected write failure in result, got %+v", result)
	}
}

func TestApplyUnsupportedAction(t *testing.T) {
	result := NewExecutor(&fakeWriter{}, zap.NewNop()).Apply(context.Background(), action("teleport"), "user-1", Extra{})
	if result.OK || result.Error != "Unsupported action: teleport" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
