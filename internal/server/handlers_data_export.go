package server

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"finpilot/backend/internal/chat"
)

var transcriptCSVHeader = []string{
	"message_id",
	"conversation_id",
	"role",
	"type",
	"provider",
	"content",
	"quick_actions",
	"created_at_utc",
}

func sanitizeCSVFilename(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "conversation"
	}
	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	sanitized := strings.Trim(b.String(), "_")
	if sanitized == "" {
		return "conversation"
	}
	return sanitized
}

func quickActionTypes(actions []chat.QuickAction) string {
	types := make([]string, 0, len(actions))
	for _, action := range actions {
		types = append(types, string(action.Type))
	}
	return strings.Join(types, ";")
}

func writeTranscriptCSV(messages []chat.Message) ([]byte, error) {
	var out bytes.Buffer
	writer := csv.NewWriter(&out)
	if err := writer.Write(transcriptCSVHeader); err != nil {
		return nil, err
	}
	for _, msg := range messages {
		provider := ""
		if msg.Provider != nil {
			provider = *msg.Provider
		}
		if err := writer.Write([]string{
			msg.ID,
			msg.ConversationID,
			string(msg.Role),
			string(msg.Type),
			provider,
			msg.Content,
			quickActionTypes(msg.QuickActions),
			msg.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (a *App) exportConversationCSV(c *gin.Context) {
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

	body, err := writeTranscriptCSV(messages)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to build CSV")
		return
	}

	filename := fmt.Sprintf(
		"finpilot_conversation_%s_%s.csv",
		sanitizeCSVFilename(conversation.ID),
		time.Now().UTC().Format("20060102_150405"),
	)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}
