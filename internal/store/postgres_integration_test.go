package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"finpilot/backend/internal/db"
)

var (
	testPool              *pgxpool.Pool
	integrationSkipReason string
)

func TestMain(m *testing.M) {
	testDatabaseURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if testDatabaseURL == "" {
		integrationSkipReason = "integration tests skipped: TEST_DATABASE_URL is not set"
		fmt.Fprintln(os.Stderr, integrationSkipReason)
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Connect(ctx, testDatabaseURL, db.WithSimpleProtocol())
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration test setup failed: cannot connect TEST_DATABASE_URL: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = db.EnsureSchema(ctx, pool)
	cancel()
	if err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "integration test setup failed: %v\n", err)
		os.Exit(1)
	}

	testPool = pool
	exitCode := m.Run()
	testPool.Close()
	os.Exit(exitCode)
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip(integrationSkipReason)
	}
}

func TestPostgresContract(t *testing.T) {
	requireIntegration(t)
	runContract(t, func(*testing.T) backend { return NewPostgres(testPool) })
}

func TestPostgresDatasetRoundTrip(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()
	pg := NewPostgres(testPool)
	userID := uuid.NewString()
	tag := "store-test-" + uuid.NewString()[:8]
	now := time.Now().UTC()

	inserted, err := pg.InsertDataset(ctx, DemoDataset(userID, "Sam", now), tag)
	if err != nil {
		t.Fatalf("insert dataset: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pg.DeleteDataset(context.Background(), userID, tag)
	})
	if inserted == 0 {
		t.Fatalf("expected rows to be inserted")
	}

	accounts, err := pg.ListAccounts(ctx, userID)
	if err != nil || len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d err=%v", len(accounts), err)
	}
	transactions, err := pg.ListTransactionsSince(ctx, userID, now.AddDate(0, 0, -10))
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) == 0 || len(transactions) == len(demoFlows) {
		t.Fatalf("expected filtered transactions, got %d", len(transactions))
	}
	profile, err := pg.GetProfile(ctx, userID)
	if err != nil || profile.DisplayName != "Sam" {
		t.Fatalf("expected seeded profile, got %+v err=%v", profile, err)
	}

	deleted, err := pg.DeleteDataset(ctx, userID, tag)
	if err != nil {
		t.Fatalf("delete dataset: %v", err)
	}
	if deleted == 0 {
		t.Fatalf("expected seeded rows to be deleted")
	}
	accounts, _ = pg.ListAccounts(ctx, userID)
	if len(accounts) != 0 {
		t.Fatalf("expected accounts removed, got %d", len(accounts))
	}
}
