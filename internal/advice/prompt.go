package advice

import (
	"fmt"
	"strings"

	"finpilot/backend/internal/finance"
)

const (
	noBudgetsLine      = "- No active budgets available."
	noTransactionsLine = "- No recent transactions available."
)

// BuildPrompt renders the system prompt for a snapshot. It performs no I/O and
// returns the same text for the same snapshot and formatter.
func BuildPrompt(snapshot finance.Snapshot, formatter finance.Formatter) string {
	if snapshot.IsEmpty() {
		return strings.Join([]string{
			"You are FinPilot, a personal finance assistant.",
			"No financial data is available for this user.",
			"Do not give personalized financial advice and do not guess any numbers.",
			"Politely ask the user to sign in and connect their accounts so their data can be loaded.",
			"You may still answer general, non-personal money questions in one or two sentences.",
		}, "\n")
	}

	var b strings.Builder
	b.WriteString("You are FinPilot, a careful personal finance assistant")
	if name := strings.TrimSpace(snapshot.DisplayName()); name != "" {
		fmt.Fprintf(&b, " helping %s", name)
	}
	b.WriteString(".\n\n")

	b.WriteString("STRICT INSTRUCTIONS:\n")
	b.WriteString("- Only use the numbers listed in USER FINANCIAL DATA below. Never fabricate balances, amounts, dates, or accounts.\n")
	b.WriteString("- Never refer to, compare with, or speculate about any other user's data.\n")
	b.WriteString("- If a value the user asks about is missing below, say that the data is not available instead of guessing.\n")
	fmt.Fprintf(&b, "- Format every amount in %s as shown below.\n\n", formatter.Currency())

	b.WriteString("USER FINANCIAL DATA:\n")
	fmt.Fprintf(&b, "- Total balance: %s\n", formatter.Money(snapshot.TotalBalance))
	fmt.Fprintf(&b, "- Income (last 30 days): %s\n", formatter.Money(snapshot.MonthlyIncome))
	fmt.Fprintf(&b, "- Expenses (last 30 days): %s\n", formatter.Money(snapshot.MonthlyExpenses))
	b.WriteString("\n")

	b.WriteString("ACTIVE BUDGETS:\n")
	if len(snapshot.Budgets) == 0 {
		b.WriteString(noBudgetsLine + "\n")
	}
	for i, budget := range snapshot.Budgets {
		if i == finance.MaxSnapshotBudgets {
			break
		}
		period := strings.TrimSpace(budget.PeriodType)
		if period == "" {
			period = "monthly"
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", promptName(budget.Name, "Unnamed budget"), formatter.Money(budget.TotalAmount), period)
	}
	b.WriteString("\n")

	b.WriteString("RECENT TRANSACTIONS (newest first):\n")
	if len(snapshot.RecentTransactions) == 0 {
		b.WriteString(noTransactionsLine + "\n")
	}
	for i, tx := range snapshot.RecentTransactions {
		if i == finance.MaxSnapshotTransactions {
			break
		}
		kind := strings.TrimSpace(string(tx.Type))
		if kind == "" {
			kind = "transaction"
		}
		fmt.Fprintf(&b, "- %s %s %s\n", formatter.Date(tx.Date), kind, formatter.Money(tx.Amount))
	}
	b.WriteString("\n")

	if len(snapshot.Goals) == 0 {
		b.WriteString("FINANCIAL GOALS: No open goals available.\n\n")
	} else {
		fmt.Fprintf(&b, "FINANCIAL GOALS: %d open goal(s).\n\n", len(snapshot.Goals))
	}

	b.WriteString("YOU MAY HELP WITH:\n")
	b.WriteString("1. Budget analysis based on the budgets and expenses above.\n")
	b.WriteString("2. Savings suggestions that fit the income and balance above.\n")
	b.WriteString("3. Spending pattern observations drawn only from the listed transactions.\n")
	b.WriteString("4. Progress toward the user's open financial goals.\n")
	b.WriteString("Keep answers short, concrete, and tied to the data above.")
	return b.String()
}

func promptName(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
