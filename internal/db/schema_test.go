package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	statements []string
	failAt     int
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	if r.failAt > 0 && len(r.statements) == r.failAt {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestEnsureSchemaCreatesEveryTable(t *testing.T) {
	execer := &recordingExecer{}
	if err := EnsureSchema(context.Background(), execer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(execer.statements, "\n")
	for _, table := range []string{
		"user_profiles", "accounts", "transactions", "budgets",
		"financial_goals", "ai_conversations", "ai_messages",
	} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("expected table %s to be created", table)
		}
	}
	if !strings.Contains(joined, "ON DELETE CASCADE") {
		t.Fatalf("expected messages to cascade with their conversation")
	}
}

func TestEnsureSchemaStopsOnFirstError(t *testing.T) {
	execer := &recordingExecer{failAt: 2}
	err := EnsureSchema(context.Background(), execer)
	if err == nil || !strings.Contains(err.Error(), "statement 2") {
		t.Fatalf("expected failure on statement 2, got %v", err)
	}
	if len(execer.statements) != 2 {
		t.Fatalf("expected to stop after failure, ran %d statements", len(execer.statements))
	}
}
