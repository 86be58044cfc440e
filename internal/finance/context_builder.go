package finance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("finance/context")

// Source is the read side of the records a snapshot is built from.
type Source interface {
	ListAccounts(ctx context.Context, userID string) ([]Account, error)
	ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]Transaction, error)
	ListActiveBudgets(ctx context.Context, userID string) ([]Budget, error)
	ListOpenGoals(ctx context.Context, userID string) ([]Goal, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)
}

type ContextBuilder struct {
	source Source
	logger *zap.Logger
	now    func() time.Time
}

func NewContextBuilder(source Source, logger *zap.Logger) *ContextBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextBuilder{
		source: source,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock used to compute the transaction window.
func (b *ContextBuilder) WithClock(now func() time.Time) *ContextBuilder {
	b.now = now
	return b
}

// Build reads the user's records concurrently and reduces them into a
// Snapshot. A failing read only blanks its own field; Build never fails.
func (b *ContextBuilder) Build(ctx context.Context, userID string) Snapshot {
	ctx, span := tracer.Start(ctx, "ContextBuilder.Build")
	defer span.End()

	snapshot := EmptySnapshot(userID)
	if userID == "" || b.source == nil {
		return snapshot
	}

	since := b.now().Add(-SnapshotWindow)

	var (
		wg           sync.WaitGroup
		accounts     []Account
		transactions []Transaction
		budgets      []Budget
		goals        []Goal
		profile      Profile
		accountsErr  error
		txErr        error
		budgetsErr   error
		goalsErr     error
		profileErr   error
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		accounts, accountsErr = b.source.ListAccounts(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		transactions, txErr = b.source.ListTransactionsSince(ctx, userID, since)
	}()
	go func() {
		defer wg.Done()
		budgets, budgetsErr = b.source.ListActiveBudgets(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		goals, goalsErr = b.source.ListOpenGoals(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		profile, profileErr = b.source.GetProfile(ctx, userID)
	}()
	wg.Wait()

	if accountsErr == nil {
		snapshot.Loaded = snapshot.Loaded || len(accounts) > 0
		snapshot.TotalBalance = sumBalances(accounts)
	} else {
		b.warn("accounts", userID, accountsErr)
	}

	if txErr == nil {
		snapshot.Loaded = snapshot.Loaded || len(transactions) > 0
		income, expenses := sumFlows(transactions, since)
		snapshot.MonthlyIncome = income
		snapshot.MonthlyExpenses = expenses
		snapshot.RecentTransactions = recentTransactionLines(transactions, MaxSnapshotTransactions)
	} else {
		b.warn("transactions", userID, txErr)
	}

	if budgetsErr == nil {
		snapshot.Loaded = snapshot.Loaded || len(budgets) > 0
		snapshot.Budgets = budgetLines(budgets, MaxSnapshotBudgets)
	} else {
		b.warn("budgets", userID, budgetsErr)
	}

	if goalsErr == nil {
		open := make([]Goal, 0, len(goals))
		for _, goal := range goals {
			if !goal.IsAchieved {
				open = append(open, goal)
			}
		}
		snapshot.Loaded = snapshot.Loaded || len(open) > 0
		snapshot.Goals = open
	} else {
		b.warn("financial_goals", userID, goalsErr)
	}

	if profileErr == nil && profile.UserID != "" {
		p := profile
		snapshot.Profile = &p
	} else if profileErr != nil {
		b.warn("user_profiles", userID, profileErr)
	}

	return snapshot
}

func (b *ContextBuilder) warn(field, userID string, err error) {
	b.logger.Warn("snapshot read failed",
		zap.String("field", field),
		zap.String("user_id", userID),
		zap.Error(err),
	)
}

func sumBalances(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, account := range accounts {
		total = total.Add(account.Balance)
	}
	return total
}

func sumFlows(transactions []Transaction, since time.Time) (decimal.Decimal, decimal.Decimal) {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, tx := range transactions {
		if tx.Date.Before(since) {
			continue
		}
		switch tx.Type {
		case KindIncome:
			income = income.Add(tx.Amount.Abs())
		case KindExpense:
			expenses = expenses.Add(tx.Amount.Abs())
		}
	}
	return income, expenses
}

func recentTransactionLines(transactions []Transaction, limit int) []TransactionLine {
	ordered := make([]Transaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].ID > ordered[j].ID
		}
		return ordered[i].Date.After(ordered[j].Date)
	})
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	lines := make([]TransactionLine, 0, len(ordered))
	for _, tx := range ordered {
		lines = append(lines, TransactionLine{Amount: tx.Amount, Type: tx.Type, Date: tx.Date})
	}
	return lines
}

func budgetLines(budgets []Budget, limit int) []BudgetLine {
	lines := make([]BudgetLine, 0, len(budgets))
	for _, budget := range budgets {
		if !budget.IsActive {
			continue
		}
		if len(lines) == limit {
			break
		}
		lines = append(lines, BudgetLine{
			Name:        budget.Name,
			TotalAmount: budget.TotalAmount,
			PeriodType:  budget.PeriodType,
		})
	}
	return lines
}
