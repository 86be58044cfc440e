package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"finpilot/backend/internal/actions"
	"finpilot/backend/internal/advice"
	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

type advicePreviewRequest struct {
	Message  string            `json:"message"`
	Locale   string            `json:"locale"`
	Currency string            `json:"currency"`
	Snapshot *finance.Snapshot `json:"snapshot"`
}

type chatQueryRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Locale         string `json:"locale"`
	Currency       string `json:"currency"`
}

type conversationCreateRequest struct {
	Title string `json:"title"`
}

type messageCreateRequest struct {
	Role         string             `json:"role"`
	Content      string             `json:"content"`
	Type         string             `json:"type"`
	QuickActions []chat.QuickAction `json:"quick_actions"`
	Provider     string             `json:"provider"`
}

type actionApplyRequest struct {
	Action chat.QuickAction `json:"action"`
	Extra  actions.Extra    `json:"extra"`
}

type messageView struct {
	ID             string             `json:"id,omitempty"`
	ConversationID string             `json:"conversation_id"`
	Role           chat.Role          `json:"role"`
	Content        string             `json:"content"`
	Type           chat.MessageType   `json:"type"`
	QuickActions   []chat.QuickAction `json:"quick_actions"`
	Provider       *string            `json:"provider"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Persisted      bool               `json:"persisted"`
}

func newMessageView(msg chat.Message, persisted bool) messageView {
	quickActions := msg.QuickActions
	if quickActions == nil {
		quickActions = []chat.QuickAction{}
	}
	return messageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		Type:           msg.Type,
		QuickActions:   quickActions,
		Provider:       msg.Provider,
		Metadata:       msg.Metadata,
		CreatedAt:      msg.CreatedAt.UTC(),
		Persisted:      persisted,
	}
}

func conversationView(conversation chat.Conversation) gin.H {
	return gin.H{
		"id":          conversation.ID,
		"title":       conversation.Title,
		"is_archived": conversation.IsArchived,
		"created_at":  conversation.CreatedAt.UTC(),
		"updated_at":  conversation.UpdatedAt.UTC(),
	}
}

func adviceView(response advice.Response) gin.H {
	quickActions := response.QuickActions
	if quickActions == nil {
		quickActions = []chat.QuickAction{}
	}
	attempts := response.Attempts
	if attempts == nil {
		attempts = []advice.Attempt{}
	}
	return gin.H{
		"content":       response.Content,
		"type":          response.Type,
		"quick_actions": quickActions,
		"provider":      response.Provider,
		"model":         response.Model,
		"fallback":      response.Fallback,
		"attempts":      attempts,
	}
}

// snapshotView adds display strings next to the raw decimal values.
func snapshotView(snapshot finance.Snapshot, formatter finance.Formatter) gin.H {
	budgets := make([]gin.H, 0, len(snapshot.Budgets))
	for _, budget := range snapshot.Budgets {
		budgets = append(budgets, gin.H{
			"name":         budget.Name,
			"total_amount": formatter.Money(budget.TotalAmount),
			"period_type":  budget.PeriodType,
		})
	}
	transactions := make([]gin.H, 0, len(snapshot.RecentTransactions))
	for _, tx := range snapshot.RecentTransactions {
		transactions = append(transactions, gin.H{
			"date":   formatter.Date(tx.Date),
			"type":   tx.Type,
			"amount": formatter.Money(tx.Amount),
		})
	}
	return gin.H{
		"snapshot": snapshot,
		"empty":    snapshot.IsEmpty(),
		"locale":   formatter.Locale(),
		"currency": formatter.Currency(),
		"formatted": gin.H{
			"total_balance":       formatter.Money(snapshot.TotalBalance),
			"monthly_income":      formatter.Money(snapshot.MonthlyIncome),
			"monthly_expenses":    formatter.Money(snapshot.MonthlyExpenses),
			"budgets":             budgets,
			"recent_transactions": transactions,
			"open_goals":          len(snapshot.Goals),
		},
	}
}

// bindOptionalJSON accepts an empty body as the zero payload.
func bindOptionalJSON(c *gin.Context, payload any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return mustJSON(c, payload)
}

func requireUser(c *gin.Context) (AuthUser, bool) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return AuthUser{}, false
	}
	return user, true
}
