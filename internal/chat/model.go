package chat

import (
	"errors"
	"time"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationRequired = errors.New("conversation id is required")
	ErrUserRequired         = errors.New("user id is required")
	ErrContentRequired      = errors.New("content is required")
	ErrInvalidRole          = errors.New("role must be one of: user, ai")
	ErrInvalidType          = errors.New("type must be one of: text, chart, recommendation")
)

// TitleMaxRunes bounds a conversation title derived from its first user message.
const TitleMaxRunes = 60

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

type MessageType string

const (
	TypeText           MessageType = "text"
	TypeChart          MessageType = "chart"
	TypeRecommendation MessageType = "recommendation"
)

type ActionType string

const (
	ActionViewBudget      ActionType = "view_budget"
	ActionBudgetHelp      ActionType = "budget_help"
	ActionSavingsPlan     ActionType = "savings_plan"
	ActionSetAlert        ActionType = "set_alert"
	ActionCreateGoal      ActionType = "create_goal"
	ActionSetGoal         ActionType = "set_goal"
	ActionCreateBudget    ActionType = "create_budget"
	ActionInvestmentGuide ActionType = "investment_guide"
	ActionRiskAssessment  ActionType = "risk_assessment"
	ActionViewProgress    ActionType = "view_progress"
)

type QuickAction struct {
	Label string     `json:"label"`
	Icon  string     `json:"icon"`
	Type  ActionType `json:"type"`
}

type Conversation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      *string   `json:"title"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Message is immutable once stored.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"type"`
	QuickActions   []QuickAction  `json:"quick_actions,omitempty"`
	Provider       *string        `json:"provider,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type ListOptions struct {
	IncludeArchived bool
}

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleUser, RoleAI:
		return Role(raw), true
	case "assistant":
		return RoleAI, true
	}
	return "", false
}

func ParseMessageType(raw string) (MessageType, bool) {
	switch MessageType(raw) {
	case "":
		return TypeText, true
	case TypeText, TypeChart, TypeRecommendation:
		return MessageType(raw), true
	}
	return "", false
}
