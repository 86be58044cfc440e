package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/finance"
)

type dbQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres implements finance.Source, actions.Writer and chat.Store on a
// pgx pool with plain SQL.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) ListAccounts(ctx context.Context, userID string) ([]finance.Account, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, user_id, name, balance::text
		 FROM accounts
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]finance.Account, 0)
	for rows.Next() {
		var (
			account finance.Account
			balance string
		)
		if err := rows.Scan(&account.ID, &account.UserID, &account.Name, &balance); err != nil {
			return nil, err
		}
		if account.Balance, err = parseDecimal(balance); err != nil {
			return nil, fmt.Errorf("account %s balance: %w", account.ID, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (p *Postgres) ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]finance.Transaction, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, user_id, amount::text, type, description, date
		 FROM transactions
		 WHERE user_id = $1 AND date >= $2
		 ORDER BY date DESC, id DESC`,
		userID,
		since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]finance.Transaction, 0)
	for rows.Next() {
		var (
			tx     finance.Transaction
			amount string
			kind   string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &amount, &kind, &tx.Description, &tx.Date); err != nil {
			return nil, err
		}
		if tx.Amount, err = parseDecimal(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", tx.ID, err)
		}
		tx.Type = finance.TransactionKind(kind)
		tx.Date = tx.Date.UTC()
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (p *Postgres) ListActiveBudgets(ctx context.Context, userID string) ([]finance.Budget, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, user_id, name, total_amount::text, period_type, is_active, start_date, created_at
		 FROM budgets
		 WHERE user_id = $1 AND is_active = TRUE
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := make([]finance.Budget, 0)
	for rows.Next() {
		var (
			budget finance.Budget
			total  string
		)
		if err := rows.Scan(
			&budget.ID,
			&budget.UserID,
			&budget.Name,
			&total,
			&budget.PeriodType,
			&budget.IsActive,
			&budget.StartDate,
			&budget.CreatedAt,
		); err != nil {
			return nil, err
		}
		if budget.TotalAmount, err = parseDecimal(total); err != nil {
			return nil, fmt.Errorf("budget %s total: %w", budget.ID, err)
		}
		budgets = append(budgets, budget)
	}
	return budgets, rows.Err()
}

func (p *Postgres) ListOpenGoals(ctx context.Context, userID string) ([]finance.Goal, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, user_id, name, target_amount::text, current_amount::text, target_date, is_achieved, created_at
		 FROM financial_goals
		 WHERE user_id = $1 AND is_achieved = FALSE
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	goals := make([]finance.Goal, 0)
	for rows.Next() {
		var (
			goal    finance.Goal
			target  string
			current string
		)
		if err := rows.Scan(
			&goal.ID,
			&goal.UserID,
			&goal.Name,
			&target,
			&current,
			&goal.TargetDate,
			&goal.IsAchieved,
			&goal.CreatedAt,
		); err != nil {
			return nil, err
		}
		if goal.TargetAmount, err = parseDecimal(target); err != nil {
			return nil, fmt.Errorf("goal %s target: %w", goal.ID, err)
		}
		if goal.CurrentAmount, err = parseDecimal(current); err != nil {
			return nil, fmt.Errorf("goal %s current: %w", goal.ID, err)
		}
		goals = append(goals, goal)
	}
	return goals, rows.Err()
}

// GetProfile returns the zero Profile when the user has none.
func (p *Postgres) GetProfile(ctx context.Context, userID string) (finance.Profile, error) {
	profile := finance.Profile{}
	err := p.db.QueryRow(
		ctx,
		`SELECT user_id, display_name, currency, locale FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&profile.UserID, &profile.DisplayName, &profile.Currency, &profile.Locale)
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Profile{}, nil
	}
	if err != nil {
		return finance.Profile{}, err
	}
	return profile, nil
}

// EnsureProfile creates the user's profile row on first sight.
func (p *Postgres) EnsureProfile(ctx context.Context, userID, displayName string) (finance.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return finance.Profile{}, chat.ErrUserRequired
	}
	if _, err := p.db.Exec(
		ctx,
		`INSERT INTO user_profiles (user_id, display_name, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
		strings.TrimSpace(displayName),
	); err != nil {
		return finance.Profile{}, err
	}
	return p.GetProfile(ctx, userID)
}

// UpdateProfile upserts the profile, keeping the stored value of any empty field.
func (p *Postgres) UpdateProfile(ctx context.Context, update finance.Profile) (finance.Profile, error) {
	if strings.TrimSpace(update.UserID) == "" {
		return finance.Profile{}, chat.ErrUserRequired
	}
	profile := finance.Profile{}
	err := p.db.QueryRow(
		ctx,
		`INSERT INTO user_profiles (user_id, display_name, locale, currency, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), user_profiles.display_name),
			locale = COALESCE(NULLIF(EXCLUDED.locale, ''), user_profiles.locale),
			currency = COALESCE(NULLIF(EXCLUDED.currency, ''), user_profiles.currency),
			updated_at = NOW()
		 RETURNING user_id, display_name, currency, locale`,
		update.UserID,
		strings.TrimSpace(update.DisplayName),
		strings.TrimSpace(update.Locale),
		strings.TrimSpace(update.Currency),
	).Scan(&profile.UserID, &profile.DisplayName, &profile.Currency, &profile.Locale)
	if err != nil {
		return finance.Profile{}, err
	}
	return profile, nil
}

func (p *Postgres) CreateGoal(ctx context.Context, goal finance.Goal) (finance.Goal, error) {
	return insertGoal(ctx, p.db, goal, "")
}

func (p *Postgres) CreateBudget(ctx context.Context, budget finance.Budget) (finance.Budget, error) {
	return insertBudget(ctx, p.db, budget, "")
}

func insertGoal(ctx context.Context, q dbQuerier, goal finance.Goal, seedTag string) (finance.Goal, error) {
	if strings.TrimSpace(goal.UserID) == "" {
		return finance.Goal{}, chat.ErrUserRequired
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	err := q.QueryRow(
		ctx,
		`INSERT INTO financial_goals (
			id, user_id, name, target_amount, current_amount, target_date, is_achieved, seed_tag, created_at
		 ) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, NOW())
		 RETURNING created_at`,
		goal.ID,
		goal.UserID,
		goal.Name,
		goal.TargetAmount.String(),
		goal.CurrentAmount.String(),
		goal.TargetDate,
		goal.IsAchieved,
		nullableString(seedTag),
	).Scan(&goal.CreatedAt)
	if err != nil {
		return finance.Goal{}, err
	}
	return goal, nil
}

func insertBudget(ctx context.Context, q dbQuerier, budget finance.Budget, seedTag string) (finance.Budget, error) {
	if strings.TrimSpace(budget.UserID) == "" {
		return finance.Budget{}, chat.ErrUserRequired
	}
	if budget.ID == "" {
		budget.ID = uuid.NewString()
	}
	startDate := budget.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}
	err := q.QueryRow(
		ctx,
		`INSERT INTO budgets (
			id, user_id, name, total_amount, period_type, is_active, start_date, seed_tag, created_at
		 ) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7::date, $8, NOW())
		 RETURNING start_date, created_at`,
		budget.ID,
		budget.UserID,
		budget.Name,
		budget.TotalAmount.String(),
		budget.PeriodType,
		budget.IsActive,
		startDate.Format("2006-01-02"),
		nullableString(seedTag),
	).Scan(&budget.StartDate, &budget.CreatedAt)
	if err != nil {
		return finance.Budget{}, err
	}
	return budget, nil
}

// InsertDataset writes a dataset in one transaction, tagging every row so
// DeleteDataset can remove it later.
func (p *Postgres) InsertDataset(ctx context.Context, data Dataset, seedTag string) (int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, account := range data.Accounts {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO accounts (id, user_id, name, balance, seed_tag, created_at)
			 VALUES ($1, $2, $3, $4::numeric, $5, NOW())`,
			orNewID(account.ID),
			account.UserID,
			account.Name,
			account.Balance.String(),
			nullableString(seedTag),
		); err != nil {
			return 0, fmt.Errorf("insert account %q: %w", account.Name, err)
		}
		inserted++
	}
	for _, item := range data.Transactions {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO transactions (id, user_id, amount, type, description, date, seed_tag, created_at)
			 VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, NOW())`,
			orNewID(item.ID),
			item.UserID,
			item.Amount.String(),
			string(item.Type),
			item.Description,
			item.Date.UTC(),
			nullableString(seedTag),
		); err != nil {
			return 0, fmt.Errorf("insert transaction %q: %w", item.Description, err)
		}
		inserted++
	}
	for _, budget := range data.Budgets {
		if _, err := insertBudget(ctx, tx, budget, seedTag); err != nil {
			return 0, fmt.Errorf("insert budget %q: %w", budget.Name, err)
		}
		inserted++
	}
	for _, goal := range data.Goals {
		if _, err := insertGoal(ctx, tx, goal, seedTag); err != nil {
			return 0, fmt.Errorf("insert goal %q: %w", goal.Name, err)
		}
		inserted++
	}
	if data.Profile != nil {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO user_profiles (user_id, display_name, created_at, updated_at)
			 VALUES ($1, $2, NOW(), NOW())
			 ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = NOW()`,
			data.Profile.UserID,
			data.Profile.DisplayName,
		); err != nil {
			return 0, fmt.Errorf("upsert profile: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteDataset removes the rows of userID carrying seedTag.
func (p *Postgres) DeleteDataset(ctx context.Context, userID, seedTag string) (int64, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var deleted int64
	for _, table := range []string{"transactions", "accounts", "budgets", "financial_goals"} {
		result, err := tx.Exec(
			ctx,
			`DELETE FROM `+table+` WHERE user_id = $1 AND seed_tag = $2`,
			userID,
			seedTag,
		)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", table, err)
		}
		deleted += result.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return deleted, nil
}

const conversationColumns = `id, user_id, title, is_archived, created_at, updated_at`

func scanConversation(row pgx.Row) (chat.Conversation, error) {
	conversation := chat.Conversation{}
	err := row.Scan(
		&conversation.ID,
		&conversation.UserID,
		&conversation.Title,
		&conversation.IsArchived,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	return conversation, err
}

func (p *Postgres) CreateConversation(ctx context.Context, userID string, title *string) (chat.Conversation, error) {
	return scanConversation(p.db.QueryRow(
		ctx,
		`INSERT INTO ai_conversations (id, user_id, title, is_archived, created_at, updated_at)
		 VALUES ($1, $2, $3, FALSE, NOW(), NOW())
		 RETURNING `+conversationColumns,
		uuid.NewString(),
		userID,
		title,
	))
}

func (p *Postgres) GetConversation(ctx context.Context, userID, conversationID string) (chat.Conversation, error) {
	return scanConversation(p.db.QueryRow(
		ctx,
		`SELECT `+conversationColumns+` FROM ai_conversations WHERE id = $1 AND user_id = $2`,
		conversationID,
		userID,
	))
}

func (p *Postgres) ListConversations(ctx context.Context, userID string, opts chat.ListOptions) ([]chat.Conversation, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT `+conversationColumns+`
		 FROM ai_conversations
		 WHERE user_id = $1 AND ($2::boolean OR is_archived = FALSE)
		 ORDER BY updated_at DESC, id DESC`,
		userID,
		opts.IncludeArchived,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]chat.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	return conversations, rows.Err()
}

func (p *Postgres) SetArchived(ctx context.Context, userID, conversationID string, archived bool) (chat.Conversation, error) {
	return scanConversation(p.db.QueryRow(
		ctx,
		`UPDATE ai_conversations
		 SET is_archived = $3, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+conversationColumns,
		conversationID,
		userID,
		archived,
	))
}

func (p *Postgres) SetTitleIfEmpty(ctx context.Context, userID, conversationID, title string) (bool, error) {
	result, err := p.db.Exec(
		ctx,
		`UPDATE ai_conversations SET title = $3
		 WHERE id = $1 AND user_id = $2 AND title IS NULL`,
		conversationID,
		userID,
		title,
	)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := p.GetConversation(ctx, userID, conversationID); err != nil {
		return false, err
	}
	return false, nil
}

func (p *Postgres) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	result, err := p.db.Exec(
		ctx,
		`DELETE FROM ai_conversations WHERE id = $1 AND user_id = $2`,
		conversationID,
		userID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return chat.ErrConversationNotFound
	}
	return nil
}

func (p *Postgres) InsertMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	quickActions, metadata, err := encodeMessageJSON(msg)
	if err != nil {
		return chat.Message{}, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return chat.Message{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := scanConversation(tx.QueryRow(
		ctx,
		`SELECT `+conversationColumns+` FROM ai_conversations WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		msg.ConversationID,
		msg.UserID,
	)); err != nil {
		return chat.Message{}, err
	}

	if err := tx.QueryRow(
		ctx,
		`INSERT INTO ai_messages (
			id, conversation_id, user_id, role, content, type, quick_actions, provider, metadata, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9::jsonb, clock_timestamp())
		 RETURNING created_at`,
		msg.ID,
		msg.ConversationID,
		msg.UserID,
		string(msg.Role),
		msg.Content,
		string(msg.Type),
		quickActions,
		msg.Provider,
		metadata,
	).Scan(&msg.CreatedAt); err != nil {
		return chat.Message{}, err
	}

	if _, err := tx.Exec(
		ctx,
		`UPDATE ai_conversations SET updated_at = $2 WHERE id = $1`,
		msg.ConversationID,
		msg.CreatedAt,
	); err != nil {
		return chat.Message{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

func (p *Postgres) ListMessages(ctx context.Context, userID, conversationID string) ([]chat.Message, error) {
	if _, err := p.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	rows, err := p.db.Query(
		ctx,
		`SELECT id, conversation_id, user_id, role, content, type, quick_actions, provider, metadata, created_at
		 FROM ai_messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var (
			msg          chat.Message
			role         string
			msgType      string
			quickActions []byte
			metadata     []byte
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.UserID,
			&role,
			&msg.Content,
			&msgType,
			&quickActions,
			&msg.Provider,
			&metadata,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.Role = chat.Role(role)
		msg.Type = chat.MessageType(msgType)
		if len(quickActions) > 0 {
			if err := json.Unmarshal(quickActions, &msg.QuickActions); err != nil {
				return nil, fmt.Errorf("message %s quick actions: %w", msg.ID, err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("message %s metadata: %w", msg.ID, err)
			}
			if len(msg.Metadata) == 0 {
				msg.Metadata = nil
			}
		}
		if len(msg.QuickActions) == 0 {
			msg.QuickActions = nil
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func encodeMessageJSON(msg chat.Message) (string, string, error) {
	actions := msg.QuickActions
	if actions == nil {
		actions = []chat.QuickAction{}
	}
	actionsRaw, err := json.Marshal(actions)
	if err != nil {
		return "", "", fmt.Errorf("encode quick actions: %w", err)
	}
	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataRaw, err := json.Marshal(metadata)
	if err != nil {
		return "", "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(actionsRaw), string(metadataRaw), nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(trimmed)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func orNewID(id string) string {
	if strings.TrimSpace(id) == "" {
		return uuid.NewString()
	}
	return id
}
