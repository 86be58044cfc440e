package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

const (
	DefaultGoalName     = "New Savings Goal"
	DefaultBudgetName   = "New Budget"
	DefaultBudgetPeriod = "monthly"
)

var ErrUserRequired = errors.New("user id is required")

// Writer creates the records quick actions may produce.
type Writer interface {
	CreateGoal(ctx context.Context, goal finance.Goal) (finance.Goal, error)
	CreateBudget(ctx context.Context, budget finance.Budget) (finance.Budget, error)
}

// Extra carries optional overrides for write actions.
type Extra struct {
	Name         string           `json:"name,omitempty"`
	TargetAmount *decimal.Decimal `json:"target_amount,omitempty"`
	TotalAmount  *decimal.Decimal `json:"total_amount,omitempty"`
	PeriodType   string           `json:"period_type,omitempty"`
	TargetDate   *time.Time       `json:"target_date,omitempty"`
}

type Result struct {
	OK         bool   `json:"ok"`
	Data       any    `json:"data,omitempty"`
	NavigateTo string `json:"navigate_to,omitempty"`
	Error      string `json:"error,omitempty"`
}

var navigationTargets = map[chat.ActionType]string{
	chat.ActionViewBudget:      "/budgets",
	chat.ActionBudgetHelp:      "/budgets/help",
	chat.ActionSavingsPlan:     "/goals/plan",
	chat.ActionSetAlert:        "/budgets/alerts",
	chat.ActionInvestmentGuide: "/insights/investing",
	chat.ActionRiskAssessment:  "/insights/risk",
	chat.ActionViewProgress:    "/goals",
}

type Executor struct {
	writer Writer
	logger *zap.Logger
	now    func() time.Time
}

func NewExecutor(writer Writer, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		writer: writer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Apply runs one quick action. Failures are reported in Result, never
// returned as errors.
func (e *Executor) Apply(ctx context.Context, action chat.QuickAction, userID string, extra Extra) Result {
	if target, ok := navigationTargets[action.Type]; ok {
		return Result{OK: true, NavigateTo: target}
	}

	switch action.Type {
	case chat.ActionCreateGoal, chat.ActionSetGoal:
		if strings.TrimSpace(userID) == "" {
			return Result{OK: false, Error: ErrUserRequired.Error()}
		}
		goal, err := e.writer.CreateGoal(ctx, e.newGoal(userID, extra))
		if err != nil {
			e.logFailure(action, userID, err)
			return Result{OK: false, Error: fmt.Sprintf("create goal: %v", err)}
		}
		return Result{OK: true, Data: goal, NavigateTo: "/goals"}

	case chat.ActionCreateBudget:
		if strings.TrimSpace(userID) == "" {
			return Result{OK: false, Error: ErrUserRequired.Error()}
		}
		budget, err := e.writer.CreateBudget(ctx, e.newBudget(userID, extra))
		if err != nil {
			e.logFailure(action, userID, err)
			return Result{OK: false, Error: fmt.Sprintf("create budget: %v", err)}
		}
		return Result{OK: true, Data: budget, NavigateTo: "/budgets"}
	}

	return Result{OK: false, Error: "Unsupported action: " + string(action.Type)}
}

func (e *Executor) newGoal(userID string, extra Extra) finance.Goal {
	goal := finance.Goal{
		UserID:        userID,
		Name:          DefaultGoalName,
		TargetAmount:  decimal.Zero,
		CurrentAmount: decimal.Zero,
		IsAchieved:    false,
		TargetDate:    extra.TargetDate,
		CreatedAt:     e.now(),
	}
	if name := strings.TrimSpace(extra.Name); name != "" {
		goal.Name = name
	}
	if extra.TargetAmount != nil && !extra.TargetAmount.IsNegative() {
		goal.TargetAmount = *extra.TargetAmount
	}
	return goal
}

func (e *Executor) newBudget(userID string, extra Extra) finance.Budget {
	now := e.now()
	budget := finance.Budget{
		UserID:      userID,
		Name:        DefaultBudgetName,
		TotalAmount: decimal.Zero,
		PeriodType:  DefaultBudgetPeriod,
		IsActive:    true,
		StartDate:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt:   now,
	}
	if name := strings.TrimSpace(extra.Name); name != "" {
		budget.Name = name
	}
	if extra.TotalAmount != nil && !extra.TotalAmount.IsNegative() {
		budget.TotalAmount = *extra.TotalAmount
	}
	if period := strings.ToLower(strings.TrimSpace(extra.PeriodType)); period != "" {
		budget.PeriodType = period
	}
	return budget
}

func (e *Executor) logFailure(action chat.QuickAction, userID string, err error) {
	e.logger.Warn("quick action write failed",
		zap.String("action", string(action.Type)),
		zap.String("user_id", userID),
		zap.Error(err),
	)
}
