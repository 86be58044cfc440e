package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx needed to apply
// schema statements.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id      TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		currency     TEXT NOT NULL DEFAULT '',
		locale       TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		balance    NUMERIC(14, 2) NOT NULL DEFAULT 0,
		seed_tag   TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS accounts_user_idx ON accounts (user_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		account_id  TEXT,
		amount      NUMERIC(14, 2) NOT NULL,
		type        TEXT NOT NULL CHECK (type IN ('income', 'expense', 'transfer')),
		description TEXT NOT NULL DEFAULT '',
		date        TIMESTAMPTZ NOT NULL,
		seed_tag    TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_user_date_idx ON transactions (user_id, date DESC)`,
	`CREATE TABLE IF NOT EXISTS budgets (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		name         TEXT NOT NULL,
		total_amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
		period_type  TEXT NOT NULL DEFAULT 'monthly',
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		start_date   DATE NOT NULL DEFAULT CURRENT_DATE,
		seed_tag     TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS budgets_user_idx ON budgets (user_id, is_active)`,
	`CREATE TABLE IF NOT EXISTS financial_goals (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		name           TEXT NOT NULL,
		target_amount  NUMERIC(14, 2) NOT NULL DEFAULT 0,
		current_amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
		target_date    DATE,
		is_achieved    BOOLEAN NOT NULL DEFAULT FALSE,
		seed_tag       TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS financial_goals_user_idx ON financial_goals (user_id, is_achieved)`,
	`CREATE TABLE IF NOT EXISTS ai_conversations (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		title       TEXT,
		is_archived BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ai_conversations_user_idx ON ai_conversations (user_id, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS ai_messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES ai_conversations (id) ON DELETE CASCADE,
		user_id         TEXT NOT NULL,
		role            TEXT NOT NULL CHECK (role IN ('user', 'ai')),
		content         TEXT NOT NULL,
		type            TEXT NOT NULL DEFAULT 'text' CHECK (type IN ('text', 'chart', 'recommendation')),
		quick_actions   JSONB NOT NULL DEFAULT '[]'::jsonb,
		provider        TEXT,
		metadata        JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ai_messages_conversation_idx ON ai_messages (conversation_id, created_at)`,
}

// EnsureSchema creates every table the service reads or writes. It is safe to
// run on every boot.
func EnsureSchema(ctx context.Context, db Execer) error {
	for index, statement := range schemaStatements {
		if _, err := db.Exec(ctx, statement); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", index+1, err)
		}
	}
	return nil
}
