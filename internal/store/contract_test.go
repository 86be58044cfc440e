package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

type backend interface {
	chat.Store
	finance.Source
	CreateGoal(ctx context.Context, goal finance.Goal) (finance.Goal, error)
	CreateBudget(ctx context.Context, budget finance.Budget) (finance.Budget, error)
	EnsureProfile(ctx context.Context, userID, displayName string) (finance.Profile, error)
	UpdateProfile(ctx context.Context, update finance.Profile) (finance.Profile, error)
}

// runContract exercises the behavior both stores must share.
func runContract(t *testing.T, newBackend func(t *testing.T) backend) {
	t.Run("message round trip", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		userID := uuid.NewString()

		conversation, err := s.CreateConversation(ctx, userID, nil)
		if err != nil {
			t.Fatalf("create conversation: %v", err)
		}
		if conversation.Title != nil || conversation.IsArchived {
			t.Fatalf("unexpected new conversation: %+v", conversation)
		}

		provider := "fallback"
		inserted, err := s.InsertMessage(ctx, chat.Message{
			ConversationID: conversation.ID,
			UserID:         userID,
			Role:           chat.RoleAI,
			Content:        "Spending is on track.",
			Type:           chat.TypeRecommendation,
			QuickActions:   []chat.QuickAction{{Label: "View Budget Details", Icon: "pie-chart", Type: chat.ActionViewBudget}},
			Provider:       &provider,
			Metadata:       map[string]any{"model": "m1"},
		})
		if err != nil {
			t.Fatalf("insert message: %v", err)
		}
		second, err := s.InsertMessage(ctx, chat.Message{
			ConversationID: conversation.ID,
			UserID:         userID,
			Role:           chat.RoleUser,
			Content:        "thanks",
			Type:           chat.TypeText,
		})
		if err != nil {
			t.Fatalf("insert second message: %v", err)
		}

		messages, err := s.ListMessages(ctx, userID, conversation.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(messages) != 2 || messages[0].ID != inserted.ID || messages[1].ID != second.ID {
			t.Fatalf("expected messages in insertion order, got %+v", messages)
		}
		got := messages[0]
		if got.Content != "Spending is on track." || got.Role != chat.RoleAI || got.Type != chat.TypeRecommendation {
			t.Fatalf("round trip mismatch: %+v", got)
		}
		if got.Provider == nil || *got.Provider != "fallback" {
			t.Fatalf("expected provider to round trip, got %v", got.Provider)
		}
		if len(got.QuickActions) != 1 || got.QuickActions[0].Type != chat.ActionViewBudget {
			t.Fatalf("expected quick actions to round trip, got %+v", got.QuickActions)
		}
		if got.Metadata["model"] != "m1" {
			t.Fatalf("expected metadata to round trip, got %+v", got.Metadata)
		}
		if messages[1].QuickActions != nil || messages[1].Provider != nil {
			t.Fatalf("expected empty optional fields, got %+v", messages[1])
		}
	})

	t.Run("archive and unarchive", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		userID := uuid.NewString()

		keep, _ := s.CreateConversation(ctx, userID, nil)
		archived, _ := s.CreateConversation(ctx, userID, nil)
		if _, err := s.SetArchived(ctx, userID, archived.ID, true); err != nil {
			t.Fatalf("archive: %v", err)
		}

		active, _ := s.ListConversations(ctx, userID, chat.ListOptions{})
		if len(active) != 1 || active[0].ID != keep.ID {
			t.Fatalf("expected archived conversation hidden, got %+v", active)
		}
		all, _ := s.ListConversations(ctx, userID, chat.ListOptions{IncludeArchived: true})
		archivedOnly := 0
		for _, conversation := range all {
			if conversation.IsArchived {
				archivedOnly++
				if conversation.ID != archived.ID {
					t.Fatalf("unexpected archived conversation %s", conversation.ID)
				}
			}
		}
		if len(all) != 2 || archivedOnly != 1 {
			t.Fatalf("expected archived conversation included, got %+v", all)
		}

		if _, err := s.SetArchived(ctx, userID, archived.ID, false); err != nil {
			t.Fatalf("unarchive: %v", err)
		}
		active, _ = s.ListConversations(ctx, userID, chat.ListOptions{})
		if len(active) != 2 {
			t.Fatalf("expected unarchive to restore listing, got %+v", active)
		}
	})

	t.Run("title is set once", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		userID := uuid.NewString()
		conversation, _ := s.CreateConversation(ctx, userID, nil)

		set, err := s.SetTitleIfEmpty(ctx, userID, conversation.ID, "first")
		if err != nil || !set {
			t.Fatalf("expected first title to be set, set=%v err=%v", set, err)
		}
		set, err = s.SetTitleIfEmpty(ctx, userID, conversation.ID, "second")
		if err != nil || set {
			t.Fatalf("expected title to stay, set=%v err=%v", set, err)
		}
		got, _ := s.GetConversation(ctx, userID, conversation.ID)
		if got.Title == nil || *got.Title != "first" {
			t.Fatalf("expected first title, got %v", got.Title)
		}
	})

	t.Run("ownership and cascade delete", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		owner := uuid.NewString()
		stranger := uuid.NewString()
		conversation, _ := s.CreateConversation(ctx, owner, nil)
		if _, err := s.InsertMessage(ctx, chat.Message{ConversationID: conversation.ID, UserID: owner, Role: chat.RoleUser, Content: "hi", Type: chat.TypeText}); err != nil {
			t.Fatalf("insert message: %v", err)
		}

		if _, err := s.GetConversation(ctx, stranger, conversation.ID); !errors.Is(err, chat.ErrConversationNotFound) {
			t.Fatalf("expected not found for stranger, got %v", err)
		}
		if err := s.DeleteConversation(ctx, stranger, conversation.ID); !errors.Is(err, chat.ErrConversationNotFound) {
			t.Fatalf("expected stranger delete to fail, got %v", err)
		}
		if err := s.DeleteConversation(ctx, owner, conversation.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.ListMessages(ctx, owner, conversation.ID); !errors.Is(err, chat.ErrConversationNotFound) {
			t.Fatalf("expected messages gone with conversation, got %v", err)
		}
	})

	t.Run("financial records", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		userID := uuid.NewString()

		goal, err := s.CreateGoal(ctx, finance.Goal{UserID: userID, Name: "New Savings Goal", TargetAmount: decimal.Zero, CurrentAmount: decimal.Zero})
		if err != nil {
			t.Fatalf("create goal: %v", err)
		}
		if _, err := s.CreateGoal(ctx, finance.Goal{UserID: userID, Name: "Done", TargetAmount: decimal.NewFromInt(10), CurrentAmount: decimal.NewFromInt(10), IsAchieved: true}); err != nil {
			t.Fatalf("create achieved goal: %v", err)
		}
		if _, err := s.CreateBudget(ctx, finance.Budget{UserID: userID, Name: "Groceries", TotalAmount: decimal.RequireFromString("600.50"), PeriodType: "monthly", IsActive: true, StartDate: time.Now().UTC()}); err != nil {
			t.Fatalf("create budget: %v", err)
		}

		goals, err := s.ListOpenGoals(ctx, userID)
		if err != nil || len(goals) != 1 || goals[0].ID != goal.ID {
			t.Fatalf("expected only the open goal, got %+v err=%v", goals, err)
		}
		if !goals[0].CurrentAmount.IsZero() || goals[0].IsAchieved {
			t.Fatalf("unexpected goal state: %+v", goals[0])
		}
		budgets, err := s.ListActiveBudgets(ctx, userID)
		if err != nil || len(budgets) != 1 || !budgets[0].TotalAmount.Equal(decimal.RequireFromString("600.5")) {
			t.Fatalf("unexpected budgets: %+v err=%v", budgets, err)
		}

		profile, err := s.GetProfile(ctx, userID)
		if err != nil || profile.UserID != "" {
			t.Fatalf("expected no profile yet, got %+v err=%v", profile, err)
		}
		if _, err := s.EnsureProfile(ctx, userID, "Sam"); err != nil {
			t.Fatalf("ensure profile: %v", err)
		}
		if _, err := s.EnsureProfile(ctx, userID, "Other"); err != nil {
			t.Fatalf("ensure profile again: %v", err)
		}
		profile, _ = s.GetProfile(ctx, userID)
		if profile.DisplayName != "Sam" {
			t.Fatalf("expected first display name kept, got %+v", profile)
		}

		updated, err := s.UpdateProfile(ctx, finance.Profile{UserID: userID, Locale: "de-DE", Currency: "EUR"})
		if err != nil {
			t.Fatalf("update profile: %v", err)
		}
		if updated.DisplayName != "Sam" || updated.Locale != "de-DE" || updated.Currency != "EUR" {
			t.Fatalf("expected partial update to keep name, got %+v", updated)
		}
		updated, _ = s.UpdateProfile(ctx, finance.Profile{UserID: userID, DisplayName: "Samira"})
		if updated.DisplayName != "Samira" || updated.Currency != "EUR" {
			t.Fatalf("expected rename to keep currency, got %+v", updated)
		}
		if _, err := s.UpdateProfile(ctx, finance.Profile{}); err == nil {
			t.Fatalf("expected update without user to fail")
		}

		if _, err := s.CreateGoal(ctx, finance.Goal{Name: "orphan"}); err == nil {
			t.Fatalf("expected goal without owner to fail")
		}
	})
}
