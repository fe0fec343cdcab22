// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/family-budget/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	Category          string
	Year              int
	Limit             int
	Offset            int
	UncategorizedOnly bool
}

// CategoryTotal is the signed sum of one category's transactions.
type CategoryTotal struct {
	Category string
	Polarity model.Polarity
	Total    float64
	Count    int
}

// MonthlyTotal is one calendar month's income and spending. Expense is
// negative, matching the stored amounts.
type MonthlyTotal struct {
	Month   string // YYYY-MM
	Income  float64
	Expense float64
	Count   int
}

// Net is the month's savings.
func (m MonthlyTotal) Net() float64 {
	return m.Income + m.Expense
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	UpdateTransactionCategory(ctx context.Context, id, category string, source model.ClassificationSource, confidence float64) error
	GetTransactionCount(ctx context.Context) (int, error)
	GetCategoryTotals(ctx context.Context, year int) ([]CategoryTotal, error)
	GetMonthlyTotals(ctx context.Context, year int) ([]MonthlyTotal, error)

	// Rule operations
	CreateRule(ctx context.Context, rule *model.CategoryRule) error
	GetRules(ctx context.Context) ([]model.CategoryRule, error)
	GetRule(ctx context.Context, id string) (*model.CategoryRule, error)
	UpdateRule(ctx context.Context, rule *model.CategoryRule) error
	DeleteRule(ctx context.Context, id string) error
	MoveRule(ctx context.Context, id string, position int) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetSettings(ctx context.Context) (map[string]string, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
