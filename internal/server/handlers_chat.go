package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"finpilot/backend/internal/advice"
	"finpilot/backend/internal/chat"
)

// chatQuery runs one full turn: store the question, generate advice, store
// the reply. Storage failures degrade the turn to ephemeral messages.
func (a *App) chatQuery(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload chatQueryRequest
	if !mustJSON(c, &payload) {
		return
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		writeError(c, http.StatusBadRequest, "message is required")
		return
	}

	ctx := c.Request.Context()
	conversation, err := a.resolveConversation(ctx, user.ID, payload.ConversationID)
	if err != nil {
		if strings.TrimSpace(payload.ConversationID) != "" {
			a.writeServiceError(c, err)
			return
		}
		a.logger.Warn("conversation not created; answering without history",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	userMsg, userPersisted := a.storeTurnMessage(ctx, chat.NewMessage{
		ConversationID: conversation.ID,
		UserID:         user.ID,
		Role:           chat.RoleUser,
		Content:        message,
		Type:           chat.TypeText,
	})

	response, err := a.advisor.GenerateAdvice(ctx, advice.Request{
		UserID:   user.ID,
		Message:  message,
		Source:   advice.ContextMustRefresh,
		Locale:   firstNonEmpty(payload.Locale, user.Locale, a.cfg.DefaultLocale),
		Currency: firstNonEmpty(payload.Currency, user.Currency, a.cfg.DefaultCurrency),
	})
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	metadata := map[string]any{
		"fallback": response.Fallback,
		"attempts": len(response.Attempts),
	}
	if response.Model != "" {
		metadata["model"] = response.Model
	}
	aiMsg, aiPersisted := a.storeTurnMessage(ctx, chat.NewMessage{
		ConversationID: conversation.ID,
		UserID:         user.ID,
		Role:           chat.RoleAI,
		Content:        response.Content,
		Type:           response.Type,
		QuickActions:   response.QuickActions,
		Provider:       response.Provider,
		Metadata:       metadata,
	})

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversation.ID,
		"user_message":    newMessageView(userMsg, userPersisted),
		"ai_message":      newMessageView(aiMsg, aiPersisted),
		"advice":          adviceView(response),
	})
}

func (a *App) resolveConversation(ctx context.Context, userID, conversationID string) (chat.Conversation, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return a.chat.CreateConversation(ctx, userID, "")
	}
	return a.chat.GetConversation(ctx, userID, conversationID)
}

// storeTurnMessage persists input and reports whether it was stored. On
// failure it returns an unsaved copy so the turn can still be answered.
func (a *App) storeTurnMessage(ctx context.Context, input chat.NewMessage) (chat.Message, bool) {
	stored, err := a.chat.AddMessage(ctx, input)
	if err == nil {
		return stored, true
	}
	a.logger.Warn("chat message not persisted",
		zap.String("conversation_id", input.ConversationID),
		zap.String("role", string(input.Role)),
		zap.Error(err),
	)
	msg := chat.Message{
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           input.Role,
		Content:        input.Content,
		Type:           input.Type,
		QuickActions:   input.QuickActions,
		Metadata:       input.Metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if msg.Type == "" {
		msg.Type = chat.TypeText
	}
	if provider := strings.TrimSpace(input.Provider); provider != "" {
		msg.Provider = &provider
	}
	return msg, false
}

func (a *App) listConversations(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	includeArchived, _ := strconv.ParseBool(strings.TrimSpace(c.Query("include_archived")))
	conversations, err := a.chat.ListConversations(c.Request.Context(), user.ID, chat.ListOptions{IncludeArchived: includeArchived})
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	items := make([]gin.H, 0, len(conversations))
	for _, conversation := range conversations {
		items = append(items, conversationView(conversation))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": items})
}

func (a *App) createConversation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload conversationCreateRequest
	if !bindOptionalJSON(c, &payload) {
		return
	}
	conversation, err := a.chat.CreateConversation(c.Request.Context(), user.ID, payload.Title)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conversationView(conversation))
}

func (a *App) getConversation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	conversation, err := a.chat.GetConversation(c.Request.Context(), user.ID, c.Param("conversation_id"))
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversationView(conversation))
}

func (a *App) archiveConversation(c *gin.Context) {
	a.setArchived(c, true)
}

func (a *App) unarchiveConversation(c *gin.Context) {
	a.setArchived(c, false)
}

func (a *App) setArchived(c *gin.Context, archived bool) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var (
		conversation chat.Conversation
		err          error
	)
	if archived {
		conversation, err = a.chat.Archive(c.Request.Context(), user.ID, c.Param("conversation_id"))
	} else {
		conversation, err = a.chat.Unarchive(c.Request.Context(), user.ID, c.Param("conversation_id"))
	}
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversationView(conversation))
}

func (a *App) deleteConversation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := a.chat.Delete(c.Request.Context(), user.ID, c.Param("conversation_id")); err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) listMessages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	conversation, err := a.chat.GetConversation(ctx, user.ID, c.Param("conversation_id"))
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	messages, err := a.chat.ListMessages(ctx, user.ID, conversation.ID)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	items := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		items = append(items, newMessageView(msg, true))
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conversationView(conversation),
		"messages":     items,
	})
}

func (a *App) createMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload messageCreateRequest
	if !mustJSON(c, &payload) {
		return
	}
	role := chat.RoleUser
	if raw := strings.ToLower(strings.TrimSpace(payload.Role)); raw != "" {
		parsed, ok := chat.ParseRole(raw)
		if !ok {
			writeError(c, http.StatusBadRequest, chat.ErrInvalidRole.Error())
			return
		}
		role = parsed
	}

	msg, err := a.chat.AddMessage(c.Request.Context(), chat.NewMessage{
		ConversationID: c.Param("conversation_id"),
		UserID:         user.ID,
		Role:           role,
		Content:        payload.Content,
		Type:           chat.MessageType(strings.ToLower(strings.TrimSpace(payload.Type))),
		QuickActions:   payload.QuickActions,
		Provider:       payload.Provider,
	})
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMessageView(msg, true))
}
