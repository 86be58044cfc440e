package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

var ErrNotFound = errors.New("record not found")

// Memory keeps every record in process memory. It backs STORAGE_DRIVER=memory
// and the HTTP tests.
type Memory struct {
	mu sync.RWMutex

	accounts      map[string][]finance.Account
	transactions  map[string][]finance.Transaction
	budgets       map[string][]finance.Budget
	goals         map[string][]finance.Goal
	profiles      map[string]finance.Profile
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		accounts:      make(map[string][]finance.Account),
		transactions:  make(map[string][]finance.Transaction),
		budgets:       make(map[string][]finance.Budget),
		goals:         make(map[string][]finance.Goal),
		profiles:      make(map[string]finance.Profile),
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source for created records.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Load inserts a batch of financial records, typically demo data.
func (m *Memory) Load(data Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range data.Accounts {
		m.accounts[account.UserID] = append(m.accounts[account.UserID], account)
	}
	for _, tx := range data.Transactions {
		m.transactions[tx.UserID] = append(m.transactions[tx.UserID], tx)
	}
	for _, budget := range data.Budgets {
		m.budgets[budget.UserID] = append(m.budgets[budget.UserID], budget)
	}
	for _, goal := range data.Goals {
		m.goals[goal.UserID] = append(m.goals[goal.UserID], goal)
	}
	if data.Profile != nil {
		m.profiles[data.Profile.UserID] = *data.Profile
	}
}

func (m *Memory) ListAccounts(_ context.Context, userID string) ([]finance.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]finance.Account{}, m.accounts[userID]...), nil
}

func (m *Memory) ListTransactionsSince(_ context.Context, userID string, since time.Time) ([]finance.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]finance.Transaction, 0, len(m.transactions[userID]))
	for _, tx := range m.transactions[userID] {
		if !tx.Date.Before(since) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *Memory) ListActiveBudgets(_ context.Context, userID string) ([]finance.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]finance.Budget, 0, len(m.budgets[userID]))
	for _, budget := range m.budgets[userID] {
		if budget.IsActive {
			out = append(out, budget)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListOpenGoals(_ context.Context, userID string) ([]finance.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]finance.Goal, 0, len(m.goals[userID]))
	for _, goal := range m.goals[userID] {
		if !goal.IsAchieved {
			out = append(out, goal)
		}
	}
	return out, nil
}

// GetProfile returns the zero Profile when the user has none.
func (m *Memory) GetProfile(_ context.Context, userID string) (finance.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[userID], nil
}

func (m *Memory) EnsureProfile(_ context.Context, userID, displayName string) (finance.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return finance.Profile{}, chat.ErrUserRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if profile, ok := m.profiles[userID]; ok {
		return profile, nil
	}
	profile := finance.Profile{UserID: userID, DisplayName: strings.TrimSpace(displayName)}
	m.profiles[userID] = profile
	return profile, nil
}

// UpdateProfile upserts the profile, keeping the stored value of any empty field.
func (m *Memory) UpdateProfile(_ context.Context, update finance.Profile) (finance.Profile, error) {
	if strings.TrimSpace(update.UserID) == "" {
		return finance.Profile{}, chat.ErrUserRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	profile := m.profiles[update.UserID]
	profile.UserID = update.UserID
	if name := strings.TrimSpace(update.DisplayName); name != "" {
		profile.DisplayName = name
	}
	if locale := strings.TrimSpace(update.Locale); locale != "" {
		profile.Locale = locale
	}
	if currency := strings.TrimSpace(update.Currency); currency != "" {
		profile.Currency = currency
	}
	m.profiles[update.UserID] = profile
	return profile, nil
}

func (m *Memory) CreateGoal(_ context.Context, goal finance.Goal) (finance.Goal, error) {
	if strings.TrimSpace(goal.UserID) == "" {
		return finance.Goal{}, chat.ErrUserRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = m.now()
	}
	m.goals[goal.UserID] = append(m.goals[goal.UserID], goal)
	return goal, nil
}

func (m *Memory) CreateBudget(_ context.Context, budget finance.Budget) (finance.Budget, error) {
	if strings.TrimSpace(budget.UserID) == "" {
		return finance.Budget{}, chat.ErrUserRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if budget.ID == "" {
		budget.ID = uuid.NewString()
	}
	if budget.CreatedAt.IsZero() {
		budget.CreatedAt = m.now()
	}
	m.budgets[budget.UserID] = append(m.budgets[budget.UserID], budget)
	return budget, nil
}

// Goals lists every goal of a user, achieved or not.
func (m *Memory) Goals(userID string) []finance.Goal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]finance.Goal{}, m.goals[userID]...)
}

func (m *Memory) CreateConversation(_ context.Context, userID string, title *string) (chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	conversation := chat.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     copyString(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversations[conversation.ID] = conversation
	return cloneConversation(conversation), nil
}

func (m *Memory) GetConversation(_ context.Context, userID, conversationID string) (chat.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conversation, ok := m.conversations[conversationID]
	if !ok || conversation.UserID != userID {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	return cloneConversation(conversation), nil
}

func (m *Memory) ListConversations(_ context.Context, userID string, opts chat.ListOptions) ([]chat.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]chat.Conversation, 0)
	for _, conversation := range m.conversations {
		if conversation.UserID != userID {
			continue
		}
		if conversation.IsArchived && !opts.IncludeArchived {
			continue
		}
		out = append(out, cloneConversation(conversation))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Memory) SetArchived(_ context.Context, userID, conversationID string, archived bool) (chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[conversationID]
	if !ok || conversation.UserID != userID {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	conversation.IsArchived = archived
	conversation.UpdatedAt = m.now()
	m.conversations[conversationID] = conversation
	return cloneConversation(conversation), nil
}

func (m *Memory) SetTitleIfEmpty(_ context.Context, userID, conversationID, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[conversationID]
	if !ok || conversation.UserID != userID {
		return false, chat.ErrConversationNotFound
	}
	if conversation.Title != nil {
		return false, nil
	}
	conversation.Title = &title
	m.conversations[conversationID] = conversation
	return true, nil
}

func (m *Memory) DeleteConversation(_ context.Context, userID, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[conversationID]
	if !ok || conversation.UserID != userID {
		return chat.ErrConversationNotFound
	}
	delete(m.conversations, conversationID)
	delete(m.messages, conversationID)
	return nil
}

func (m *Memory) InsertMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[msg.ConversationID]
	if !ok || conversation.UserID != msg.UserID {
		return chat.Message{}, chat.ErrConversationNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = m.now()
	if existing := m.messages[msg.ConversationID]; len(existing) > 0 {
		last := existing[len(existing)-1].CreatedAt
		if !msg.CreatedAt.After(last) {
			msg.CreatedAt = last.Add(time.Microsecond)
		}
	}
	msg = cloneMessage(msg)
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	conversation.UpdatedAt = msg.CreatedAt
	m.conversations[msg.ConversationID] = conversation
	return cloneMessage(msg), nil
}

func (m *Memory) ListMessages(_ context.Context, userID, conversationID string) ([]chat.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conversation, ok := m.conversations[conversationID]
	if !ok || conversation.UserID != userID {
		return nil, chat.ErrConversationNotFound
	}
	out := make([]chat.Message, 0, len(m.messages[conversationID]))
	for _, msg := range m.messages[conversationID] {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneConversation(conversation chat.Conversation) chat.Conversation {
	conversation.Title = copyString(conversation.Title)
	return conversation
}

func cloneMessage(msg chat.Message) chat.Message {
	msg.Provider = copyString(msg.Provider)
	if msg.QuickActions != nil {
		msg.QuickActions = append([]chat.QuickAction(nil), msg.QuickActions...)
	}
	if msg.Metadata != nil {
		metadata := make(map[string]any, len(msg.Metadata))
		for key, value := range msg.Metadata {
			metadata[key] = value
		}
		msg.Metadata = metadata
	}
	return msg
}
