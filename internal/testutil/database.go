// Package testutil provides shared test fixtures: an in-memory database and
// builders for transactions and rules.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database seeded with rules, in order.
// It is closed when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		testutil.Rule("netflix", "Subscriptions", model.PolarityExpense),
//	)
func SetupTestDB(t *testing.T, rules ...model.CategoryRule) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Rules: rules})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Rules          []model.CategoryRule
	Transactions   []model.Transaction
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for i := range opts.Rules {
		rule := opts.Rules[i]
		if err := store.CreateRule(ctx, &rule); err != nil {
			t.Fatalf("failed to seed rule %q: %v", rule.Keyword, err)
		}
	}

	if len(opts.Transactions) > 0 {
		if _, err := store.SaveTransactions(ctx, opts.Transactions); err != nil {
			t.Fatalf("failed to seed transactions: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustGetTransaction returns a stored transaction or fails the test.
func (db *TestDB) MustGetTransaction(id string) *model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransactionByID(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to get transaction %s: %v", id, err)
	}
	return txn
}

// Rule builds a category rule for seeding.
func Rule(keyword, category string, polarity model.Polarity) model.CategoryRule {
	return model.CategoryRule{Keyword: keyword, Category: category, Polarity: polarity}
}

// Transaction builds an uncategorized transaction dated 2024-03-day.
func Transaction(id string, day int, amount float64, description string) model.Transaction {
	txn := model.Transaction{
		ID:          id,
		Date:        time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
		Amount:      amount,
		Description: description,
		AccountID:   "test-account",
		Polarity:    model.PolarityOf(amount),
		Category:    model.Uncategorized,
		Source:      model.SourceNone,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

// MustCount returns the number of stored transactions or fails the test.
func (db *TestDB) MustCount() int {
	db.t.Helper()
	n, err := db.Storage.GetTransactionCount(context.Background())
	if err != nil {
		db.t.Fatalf("failed to count transactions: %v", err)
	}
	return n
}
