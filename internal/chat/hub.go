package chat

import (
	"sync"

	"go.uber.org/zap"
)

const defaultSubscriberBuffer = 16

// Hub fans out stored messages to subscribers of their conversation.
// Publish never blocks; a subscriber whose buffer is full misses the message.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan Message]struct{}
	buffer int
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]map[chan Message]struct{}),
		buffer: defaultSubscriberBuffer,
		logger: logger,
	}
}

// Subscribe registers for messages of one conversation. The returned cancel
// func unregisters and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe(conversationID string) (<-chan Message, func()) {
	ch := make(chan Message, h.buffer)

	h.mu.Lock()
	set, ok := h.subs[conversationID]
	if !ok {
		set = make(map[chan Message]struct{})
		h.subs[conversationID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[conversationID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, conversationID)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[msg.ConversationID] {
		select {
		case ch <- msg:
		default:
			h.logger.Warn("dropping realtime message for slow subscriber",
				zap.String("conversation_id", msg.ConversationID),
				zap.String("message_id", msg.ID),
			)
		}
	}
}

func (h *Hub) Subscribers(conversationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[conversationID])
}
