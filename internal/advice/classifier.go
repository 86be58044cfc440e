package advice

import (
	"strings"

	"finpilot/backend/internal/chat"
)

// Classification is the UI shape derived from an advice text.
type Classification struct {
	Type         chat.MessageType   `json:"type"`
	QuickActions []chat.QuickAction `json:"quick_actions"`
}

type Classifier interface {
	Classify(text string) Classification
}

// KeywordClassifier maps text to a keyword family. Families are checked in
// order budget, goal, invest; the first hit wins.
type KeywordClassifier struct{}

type keywordFamily struct {
	keywords []string
	actions  []chat.QuickAction
}

var keywordFamilies = []keywordFamily{
	{
		keywords: []string{"budget", "spending", "spend", "expense"},
		actions: []chat.QuickAction{
			{Label: "View Budget Details", Icon: "pie-chart", Type: chat.ActionViewBudget},
			{Label: "Set Budget Alert", Icon: "bell", Type: chat.ActionSetAlert},
		},
	},
	{
		keywords: []string{"goal", "save", "saving"},
		actions: []chat.QuickAction{
			{Label: "Create Savings Goal", Icon: "target", Type: chat.ActionCreateGoal},
			{Label: "View Progress", Icon: "trending-up", Type: chat.ActionViewProgress},
		},
	},
	{
		keywords: []string{"invest", "portfolio"},
		actions: []chat.QuickAction{
			{Label: "Investment Guide", Icon: "book-open", Type: chat.ActionInvestmentGuide},
			{Label: "Risk Assessment", Icon: "shield", Type: chat.ActionRiskAssessment},
		},
	},
}

func (KeywordClassifier) Classify(text string) Classification {
	lowered := strings.ToLower(text)
	for _, family := range keywordFamilies {
		if containsAny(lowered, family.keywords) {
			actions := make([]chat.QuickAction, len(family.actions))
			copy(actions, family.actions)
			return Classification{Type: chat.TypeRecommendation, QuickActions: actions}
		}
	}
	return Classification{Type: chat.TypeText, QuickActions: []chat.QuickAction{}}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
