package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// SnapshotWindow is how far back transactions count toward monthly totals.
	SnapshotWindow = 30 * 24 * time.Hour

	MaxSnapshotBudgets      = 10
	MaxSnapshotTransactions = 10
)

type TransactionKind string

const (
	KindIncome   TransactionKind = "income"
	KindExpense  TransactionKind = "expense"
	KindTransfer TransactionKind = "transfer"
)

type Account struct {
	ID      string          `json:"id"`
	UserID  string          `json:"user_id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionKind `json:"type"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
}

type Budget struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PeriodType  string          `json:"period_type"`
	IsActive    bool            `json:"is_active"`
	StartDate   time.Time       `json:"start_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Goal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *time.Time      `json:"target_date,omitempty"`
	IsAchieved    bool            `json:"is_achieved"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Currency    string `json:"currency,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

type BudgetLine struct {
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PeriodType  string          `json:"period_type"`
}

type TransactionLine struct {
	Amount decimal.Decimal `json:"amount"`
	Type   TransactionKind `json:"type"`
	Date   time.Time       `json:"date"`
}

// Snapshot is the request-scoped reduction of a user's records that feeds the
// advice prompt. It has no persistent identity.
type Snapshot struct {
	UserID             string            `json:"user_id,omitempty"`
	Loaded             bool              `json:"loaded"`
	TotalBalance       decimal.Decimal   `json:"total_balance"`
	MonthlyIncome      decimal.Decimal   `json:"monthly_income"`
	MonthlyExpenses    decimal.Decimal   `json:"monthly_expenses"`
	Budgets            []BudgetLine      `json:"budgets"`
	RecentTransactions []TransactionLine `json:"recent_transactions"`
	Goals              []Goal            `json:"financial_goals"`
	Profile            *Profile          `json:"user_profile,omitempty"`
}

// EmptySnapshot returns a snapshot whose sequences are non-nil so that it
// serializes as empty lists.
func EmptySnapshot(userID string) Snapshot {
	return Snapshot{
		UserID:             userID,
		TotalBalance:       decimal.Zero,
		MonthlyIncome:      decimal.Zero,
		MonthlyExpenses:    decimal.Zero,
		Budgets:            []BudgetLine{},
		RecentTransactions: []TransactionLine{},
		Goals:              []Goal{},
	}
}

// IsEmpty reports whether the snapshot carries no financial data at all. A
// snapshot is Loaded only when some read returned at least one row; a profile
// alone does not count.
func (s Snapshot) IsEmpty() bool {
	if s.Loaded {
		return false
	}
	return s.TotalBalance.IsZero() &&
		s.MonthlyIncome.IsZero() &&
		s.MonthlyExpenses.IsZero() &&
		len(s.Budgets) == 0 &&
		len(s.RecentTransactions) == 0 &&
		len(s.Goals) == 0
}

func (s Snapshot) DisplayName() string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.DisplayName
}
