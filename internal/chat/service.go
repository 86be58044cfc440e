package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Store persists conversations and their messages. Every lookup is scoped
// by owner; a conversation owned by someone else is ErrConversationNotFound.
type Store interface {
	CreateConversation(ctx context.Context, userID string, title *string) (Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID string) (Conversation, error)
	ListConversations(ctx context.Context, userID string, opts ListOptions) ([]Conversation, error)
	SetArchived(ctx context.Context, userID, conversationID string, archived bool) (Conversation, error)
	// SetTitleIfEmpty assigns the title only when none is set and reports
	// whether it did.
	SetTitleIfEmpty(ctx context.Context, userID, conversationID, title string) (bool, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	InsertMessage(ctx context.Context, msg Message) (Message, error)
	ListMessages(ctx context.Context, userID, conversationID string) ([]Message, error)
}

type NewMessage struct {
	ConversationID string
	UserID         string
	Role           Role
	Content        string
	Type           MessageType
	QuickActions   []QuickAction
	Provider       string
	Metadata       map[string]any
}

type Service struct {
	store  Store
	hub    *Hub
	logger *zap.Logger
}

func NewService(store Store, hub *Hub, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hub: hub, logger: logger}
}

func (s *Service) Hub() *Hub { return s.hub }

func (s *Service) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return Conversation{}, ErrUserRequired
	}
	var titlePtr *string
	if trimmed := TitleFromText(title); trimmed != "" {
		titlePtr = &trimmed
	}
	conversation, err := s.store.CreateConversation(ctx, userID, titlePtr)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

func (s *Service) GetConversation(ctx context.Context, userID, conversationID string) (Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return Conversation{}, ErrUserRequired
	}
	if strings.TrimSpace(conversationID) == "" {
		return Conversation{}, ErrConversationRequired
	}
	return s.store.GetConversation(ctx, userID, conversationID)
}

// ListConversations excludes archived rows unless opts asks for them.
func (s *Service) ListConversations(ctx context.Context, userID string, opts ListOptions) ([]Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	return s.store.ListConversations(ctx, userID, opts)
}

func (s *Service) Archive(ctx context.Context, userID, conversationID string) (Conversation, error) {
	return s.setArchived(ctx, userID, conversationID, true)
}

func (s *Service) Unarchive(ctx context.Context, userID, conversationID string) (Conversation, error) {
	return s.setArchived(ctx, userID, conversationID, false)
}

func (s *Service) setArchived(ctx context.Context, userID, conversationID string, archived bool) (Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return Conversation{}, ErrUserRequired
	}
	if strings.TrimSpace(conversationID) == "" {
		return Conversation{}, ErrConversationRequired
	}
	return s.store.SetArchived(ctx, userID, conversationID, archived)
}

// Delete removes the conversation and all of its messages.
func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	if strings.TrimSpace(conversationID) == "" {
		return ErrConversationRequired
	}
	return s.store.DeleteConversation(ctx, userID, conversationID)
}

// AddMessage validates and stores a message. The first stored user message of
// an untitled conversation names it.
func (s *Service) AddMessage(ctx context.Context, input NewMessage) (Message, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return Message{}, ErrUserRequired
	}
	if strings.TrimSpace(input.ConversationID) == "" {
		return Message{}, ErrConversationRequired
	}
	if strings.TrimSpace(input.Content) == "" {
		return Message{}, ErrContentRequired
	}
	if _, ok := ParseRole(string(input.Role)); !ok {
		return Message{}, ErrInvalidRole
	}
	msgType, ok := ParseMessageType(string(input.Type))
	if !ok {
		return Message{}, ErrInvalidType
	}

	conversation, err := s.store.GetConversation(ctx, input.UserID, input.ConversationID)
	if err != nil {
		return Message{}, err
	}

	role, _ := ParseRole(string(input.Role))
	msg := Message{
		ConversationID: conversation.ID,
		UserID:         input.UserID,
		Role:           role,
		Content:        input.Content,
		Type:           msgType,
		QuickActions:   input.QuickActions,
		Metadata:       input.Metadata,
	}
	if provider := strings.TrimSpace(input.Provider); provider != "" {
		msg.Provider = &provider
	}

	stored, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if stored.Role == RoleUser && conversation.Title == nil {
		if title := TitleFromText(stored.Content); title != "" {
			if _, err := s.store.SetTitleIfEmpty(ctx, input.UserID, conversation.ID, title); err != nil {
				s.logger.Warn("conversation title not set",
					zap.String("conversation_id", conversation.ID),
					zap.Error(err),
				)
			}
		}
	}

	if s.hub != nil {
		s.hub.Publish(stored)
	}
	return stored, nil
}

// ListMessages returns messages oldest first.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID string) ([]Message, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrConversationRequired
	}
	return s.store.ListMessages(ctx, userID, conversationID)
}

// TitleFromText trims text and keeps at most TitleMaxRunes runes.
func TitleFromText(text string) string {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= TitleMaxRunes {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:TitleMaxRunes])
}

// IsNotFound reports whether err means the conversation is missing or not
// owned by the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}
