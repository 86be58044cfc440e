package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finpilot/backend/internal/finance"
)

// Dataset is a batch of financial records for one user.
type Dataset struct {
	Accounts     []finance.Account
	Transactions []finance.Transaction
	Budgets      []finance.Budget
	Goals        []finance.Goal
	Profile      *finance.Profile
}

type demoFlow struct {
	DaysAgo     int
	Amount      string
	Kind        finance.TransactionKind
	Description string
}

var demoFlows = []demoFlow{
	{DaysAgo: 28, Amount: "3200.00", Kind: finance.KindIncome, Description: "Salary"},
	{DaysAgo: 27, Amount: "-1400.00", Kind: finance.KindExpense, Description: "Rent"},
	{DaysAgo: 25, Amount: "-86.40", Kind: finance.KindExpense, Description: "Groceries"},
	{DaysAgo: 22, Amount: "-42.15", Kind: finance.KindExpense, Description: "Dining out"},
	{DaysAgo: 20, Amount: "-120.35", Kind: finance.KindExpense, Description: "Electricity and water"},
	{DaysAgo: 18, Amount: "-500.00", Kind: finance.KindTransfer, Description: "Move to savings"},
	{DaysAgo: 16, Amount: "-94.10", Kind: finance.KindExpense, Description: "Groceries"},
	{DaysAgo: 13, Amount: "250.00", Kind: finance.KindIncome, Description: "Freelance invoice"},
	{DaysAgo: 11, Amount: "-61.80", Kind: finance.KindExpense, Description: "Dining out"},
	{DaysAgo: 9, Amount: "-78.25", Kind: finance.KindExpense, Description: "Groceries"},
	{DaysAgo: 6, Amount: "-35.00", Kind: finance.KindExpense, Description: "Streaming subscriptions"},
	{DaysAgo: 4, Amount: "-102.60", Kind: finance.KindExpense, Description: "Groceries"},
	{DaysAgo: 2, Amount: "-27.90", Kind: finance.KindExpense, Description: "Coffee"},
	{DaysAgo: 1, Amount: "-58.45", Kind: finance.KindExpense, Description: "Fuel"},
}

// DemoDataset builds a month of plausible records for userID ending at now.
func DemoDataset(userID, displayName string, now time.Time) Dataset {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	data := Dataset{
		Accounts: []finance.Account{
			{ID: uuid.NewString(), UserID: userID, Name: "Everyday checking", Balance: decimal.RequireFromString("2450.75")},
			{ID: uuid.NewString(), UserID: userID, Name: "High-yield savings", Balance: decimal.RequireFromString("8200.00")},
			{ID: uuid.NewString(), UserID: userID, Name: "Credit card", Balance: decimal.RequireFromString("-430.20")},
		},
		Budgets: []finance.Budget{
			{ID: uuid.NewString(), UserID: userID, Name: "Groceries", TotalAmount: decimal.RequireFromString("600"), PeriodType: "monthly", IsActive: true, StartDate: monthStart, CreatedAt: day.Add(-3 * time.Hour)},
			{ID: uuid.NewString(), UserID: userID, Name: "Dining", TotalAmount: decimal.RequireFromString("250"), PeriodType: "monthly", IsActive: true, StartDate: monthStart, CreatedAt: day.Add(-2 * time.Hour)},
			{ID: uuid.NewString(), UserID: userID, Name: "Utilities", TotalAmount: decimal.RequireFromString("200"), PeriodType: "monthly", IsActive: true, StartDate: monthStart, CreatedAt: day.Add(-1 * time.Hour)},
		},
		Goals: []finance.Goal{
			{ID: uuid.NewString(), UserID: userID, Name: "Emergency fund", TargetAmount: decimal.RequireFromString("10000"), CurrentAmount: decimal.RequireFromString("8200"), CreatedAt: day},
			{ID: uuid.NewString(), UserID: userID, Name: "Summer trip", TargetAmount: decimal.RequireFromString("3000"), CurrentAmount: decimal.RequireFromString("650"), CreatedAt: day},
		},
		Profile: &finance.Profile{UserID: userID, DisplayName: displayName},
	}

	for index, flow := range demoFlows {
		data.Transactions = append(data.Transactions, finance.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Amount:      decimal.RequireFromString(flow.Amount),
			Type:        flow.Kind,
			Description: fmt.Sprintf("%s #%d", flow.Description, index+1),
			Date:        day.AddDate(0, 0, -flow.DaysAgo),
		})
	}
	return data
}
