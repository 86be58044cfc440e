package advice

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finpilot/backend/internal/finance"
)

func loadedSnapshot() finance.Snapshot {
	snapshot := finance.EmptySnapshot("user-1")
	snapshot.Loaded = true
	snapshot.TotalBalance = decimal.RequireFromString("1234.5")
	snapshot.MonthlyIncome = decimal.RequireFromString("3200")
	snapshot.MonthlyExpenses = decimal.RequireFromString("500")
	snapshot.Budgets = []finance.BudgetLine{
		{Name: "Groceries", TotalAmount: decimal.RequireFromString("600"), PeriodType: "monthly"},
	}
	snapshot.RecentTransactions = []finance.TransactionLine{
		{Amount: decimal.RequireFromString("-42.10"), Type: finance.KindExpense, Date: time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)},
	}
	snapshot.Goals = []finance.Goal{{ID: "g1", Name: "Trip"}}
	snapshot.Profile = &finance.Profile{UserID: "user-1", DisplayName: "Sam"}
	return snapshot
}

func assertNoNullLiterals(t *testing.T, prompt string) {
	t.Helper()
	for _, literal := range []string{"null", "undefined", "<nil>", "%!"} {
		if strings.Contains(prompt, literal) {
			t.Fatalf("prompt contains %q:\n%s", literal, prompt)
		}
	}
}

func TestBuildPromptEmptySnapshotAsksToSignIn(t *testing.T) {
	prompt := BuildPrompt(finance.EmptySnapshot(""), finance.NewFormatter("en-US", "USD"))
	if !strings.Contains(prompt, "sign in") {
		t.Fatalf("expected sign-in instruction, got %q", prompt)
	}
	if !strings.Contains(prompt, "Do not give personalized financial advice") {
		t.Fatalf("expected refusal instruction, got %q", prompt)
	}
	assertNoNullLiterals(t, prompt)
}

func TestBuildPromptRendersSnapshot(t *testing.T) {
	prompt := BuildPrompt(loadedSnapshot(), finance.NewFormatter("en-US", "USD"))
	for _, want := range []string{
		"helping Sam",
		"STRICT INSTRUCTIONS",
		"Never fabricate",
		"other user's data",
		"Total balance: $1,234.50",
		"Income (last 30 days): $3,200.00",
		"Expenses (last 30 days): $500.00",
		"- Groceries: $600.00 (monthly)",
		"- 2026-03-30 expense -$42.10",
		"FINANCIAL GOALS: 1 open goal(s).",
		"4. Progress toward",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q:\n%s", want, prompt)
		}
	}
	assertNoNullLiterals(t, prompt)
}

func TestBuildPromptDeclaresMissingSections(t *testing.T) {
	snapshot := finance.EmptySnapshot("user-1")
	snapshot.Loaded = true
	snapshot.Budgets = nil
	snapshot.RecentTransactions = nil
	snapshot.Goals = nil

	prompt := BuildPrompt(snapshot, finance.NewFormatter("en-US", "USD"))
	for _, want := range []string{
		"No active budgets available",
		"No recent transactions available",
		"No open goals available",
		"Total balance: $0.00",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "helping") {
		t.Fatalf("expected no display name without profile:\n%s", prompt)
	}
	assertNoNullLiterals(t, prompt)
}

func TestBuildPromptCapsLinesAndIsDeterministic(t *testing.T) {
	snapshot := loadedSnapshot()
	snapshot.Budgets = nil
	for i := 0; i < 14; i++ {
		snapshot.Budgets = append(snapshot.Budgets, finance.BudgetLine{Name: "Line", TotalAmount: decimal.NewFromInt(int64(i))})
	}
	formatter := finance.NewFormatter("en-US", "USD")

	first := BuildPrompt(snapshot, formatter)
	second := BuildPrompt(snapshot, formatter)
	if first != second {
		t.Fatalf("expected deterministic prompt")
	}
	if got := strings.Count(first, "- Line: "); got != finance.MaxSnapshotBudgets {
		t.Fatalf("expected %d budget lines, got %d", finance.MaxSnapshotBudgets, got)
	}
}
