package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait    = 10 * time.Second
	streamPingInterval = 54 * time.Second
	streamReadLimit    = 512
)

// streamConversation pushes every message stored in the conversation to the
// client as JSON until either side disconnects.
func (a *App) streamConversation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	conversation, err := a.chat.GetConversation(c.Request.Context(), user.ID, c.Param("conversation_id"))
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := a.chat.Hub().Subscribe(conversation.ID)
	defer cancel()

	// Inbound frames are ignored; reading surfaces the peer closing.
	conn.SetReadLimit(streamReadLimit)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(newMessageView(msg, true)); err != nil {
				a.logger.Debug("websocket write failed",
					zap.String("conversation_id", conversation.ID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
