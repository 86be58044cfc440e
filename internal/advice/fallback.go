package advice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

// FallbackProvider names responses produced without any model.
const FallbackProvider = "fallback"

type fallbackTopic string

const (
	topicBudget  fallbackTopic = "budget"
	topicSavings fallbackTopic = "savings"
	topicGeneral fallbackTopic = "general"
)

func fallbackTopicFor(message string) fallbackTopic {
	lowered := strings.ToLower(message)
	switch {
	case containsAny(lowered, []string{"budget", "spend", "expense"}):
		return topicBudget
	case containsAny(lowered, []string{"save", "saving", "goal"}):
		return topicSavings
	default:
		return topicGeneral
	}
}

// fallbackAdvice builds a templated reply from the snapshot's own values. It
// always returns exactly two quick actions.
func fallbackAdvice(message string, snapshot finance.Snapshot, formatter finance.Formatter) (string, []chat.QuickAction) {
	balance := formatter.Money(snapshot.TotalBalance)
	income := formatter.Money(snapshot.MonthlyIncome)
	expenses := formatter.Money(snapshot.MonthlyExpenses)

	switch fallbackTopicFor(message) {
	case topicBudget:
		lines := []string{
			fmt.Sprintf("Your total balance is %s and you spent %s over the last 30 days.", balance, expenses),
		}
		if len(snapshot.Budgets) == 0 {
			lines = append(lines, "You have no active budgets yet. Creating one is a good way to keep spending on track.")
		} else {
			budgeted := decimal.Zero
			names := make([]string, 0, len(snapshot.Budgets))
			for _, budget := range snapshot.Budgets {
				budgeted = budgeted.Add(budget.TotalAmount)
				names = append(names, fmt.Sprintf("%s (%s)", promptName(budget.Name, "Unnamed budget"), formatter.Money(budget.TotalAmount)))
			}
			lines = append(lines, fmt.Sprintf("Your active budgets are %s, %s in total.", strings.Join(names, ", "), formatter.Money(budgeted)))
			if snapshot.MonthlyExpenses.GreaterThan(budgeted) {
				lines = append(lines, fmt.Sprintf("Spending is %s above what you budgeted.", formatter.Money(snapshot.MonthlyExpenses.Sub(budgeted))))
			} else {
				lines = append(lines, fmt.Sprintf("You still have %s left within your budgets.", formatter.Money(budgeted.Sub(snapshot.MonthlyExpenses))))
			}
		}
		return strings.Join(lines, " "), []chat.QuickAction{
			{Label: "View Budget Details", Icon: "pie-chart", Type: chat.ActionViewBudget},
			{Label: "Get Budget Help", Icon: "help-circle", Type: chat.ActionBudgetHelp},
		}

	case topicSavings:
		net := snapshot.MonthlyIncome.Sub(snapshot.MonthlyExpenses)
		lines := []string{
			fmt.Sprintf("Over the last 30 days you earned %s and spent %s.", income, expenses),
		}
		if net.IsPositive() {
			lines = append(lines, fmt.Sprintf("That leaves %s you could move toward savings.", formatter.Money(net)))
		} else {
			lines = append(lines, "Expenses matched or exceeded income, so trimming spending comes before saving more.")
		}
		switch len(snapshot.Goals) {
		case 0:
			lines = append(lines, "You have no open savings goals yet.")
		case 1:
			lines = append(lines, "You have 1 open savings goal.")
		default:
			lines = append(lines, fmt.Sprintf("You have %d open savings goals.", len(snapshot.Goals)))
		}
		return strings.Join(lines, " "), []chat.QuickAction{
			{Label: "Create Savings Goal", Icon: "target", Type: chat.ActionCreateGoal},
			{Label: "Build Savings Plan", Icon: "piggy-bank", Type: chat.ActionSavingsPlan},
		}
	}

	content := fmt.Sprintf(
		"Here is where things stand: total balance %s, income %s and expenses %s over the last 30 days. I can help you review your budget or set up a savings goal.",
		balance, income, expenses,
	)
	return content, []chat.QuickAction{
		{Label: "View Budget Details", Icon: "pie-chart", Type: chat.ActionViewBudget},
		{Label: "Create Savings Goal", Icon: "target", Type: chat.ActionCreateGoal},
	}
}
