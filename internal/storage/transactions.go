package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/service"
)

// dateLayout is how transaction dates are stored.
const dateLayout = "2006-01-02"

const transactionColumns = `id, hash, date, amount, description, type, category,
	source, confidence, account_id, original_line, created_at`

// SaveTransactions inserts transactions, skipping any whose hash is already
// stored. It returns how many rows were inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, hash, date, amount, description, type, category,
				source, confidence, account_id, original_line
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, txn := range transactions {
			if txn.Hash == "" {
				txn.Hash = txn.GenerateHash()
			}
			if txn.Polarity == "" {
				txn.Polarity = model.PolarityOf(txn.Amount)
			}
			if txn.Category == "" {
				txn.Category = model.Uncategorized
			}
			if txn.Source == "" {
				txn.Source = model.SourceNone
			}

			res, execErr := stmt.ExecContext(ctx,
				txn.ID,
				txn.Hash,
				txn.Date.Format(dateLayout),
				txn.Amount,
				txn.Description,
				string(txn.Polarity),
				txn.Category,
				string(txn.Source),
				txn.Confidence,
				txn.AccountID,
				nullString(txn.OriginalLine),
			)
			if execErr != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, execErr)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetTransactions returns transactions matching filter, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.Year > 0 {
		where = append(where, "substr(date, 1, 4) = ?")
		args = append(args, fmt.Sprintf("%04d", filter.Year))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.UncategorizedOnly {
		where = append(where, "category = ?")
		args = append(args, model.Uncategorized)
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return getTransactionByID(ctx, s.db, id)
}

func getTransactionByID(ctx context.Context, q queryer, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return txn, err
}

// UpdateTransactionCategory records a new category and where it came from.
func (s *SQLiteStorage) UpdateTransactionCategory(ctx context.Context, id, category string, source model.ClassificationSource, confidence float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(category, "category"); err != nil {
		return err
	}
	if !source.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidSource, source)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET category = ?, source = ?, confidence = ? WHERE id = ?`,
		category, string(source), confidence, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return nil
}

// GetTransactionCount returns the number of stored transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// GetCategoryTotals sums transactions per category and polarity. A zero year
// covers every year.
func (s *SQLiteStorage) GetCategoryTotals(ctx context.Context, year int) ([]service.CategoryTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT category, type, SUM(amount), COUNT(*) FROM transactions`
	var args []any
	if year > 0 {
		query += ` WHERE substr(date, 1, 4) = ?`
		args = append(args, fmt.Sprintf("%04d", year))
	}
	query += ` GROUP BY category, type ORDER BY type DESC, ABS(SUM(amount)) DESC, category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []service.CategoryTotal
	for rows.Next() {
		var (
			t        service.CategoryTotal
			polarity string
		)
		if err := rows.Scan(&t.Category, &polarity, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		t.Polarity = model.Polarity(polarity)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category totals: %w", err)
	}
	return totals, nil
}

// GetMonthlyTotals splits each month's transactions into income and expense
// by the sign of the amount, oldest month first. A zero year covers every year.
func (s *SQLiteStorage) GetMonthlyTotals(ctx context.Context, year int) ([]service.MonthlyTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT substr(date, 1, 7),
			COALESCE(SUM(CASE WHEN amount > 0 THEN amount END), 0),
			COALESCE(SUM(CASE WHEN amount < 0 THEN amount END), 0),
			COUNT(*)
		FROM transactions`
	var args []any
	if year > 0 {
		query += ` WHERE substr(date, 1, 4) = ?`
		args = append(args, fmt.Sprintf("%04d", year))
	}
	query += ` GROUP BY substr(date, 1, 7) ORDER BY substr(date, 1, 7)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []service.MonthlyTotal
	for rows.Next() {
		var m service.MonthlyTotal
		if err := rows.Scan(&m.Month, &m.Income, &m.Expense, &m.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly total: %w", err)
		}
		totals = append(totals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly totals: %w", err)
	}
	return totals, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		txn          model.Transaction
		date         string
		polarity     string
		source       string
		originalLine sql.NullString
		createdAt    sql.NullTime
	)
	err := row.Scan(
		&txn.ID,
		&txn.Hash,
		&date,
		&txn.Amount,
		&txn.Description,
		&polarity,
		&txn.Category,
		&source,
		&txn.Confidence,
		&txn.AccountID,
		&originalLine,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("transaction %s has invalid date %q: %w", txn.ID, date, err)
	}
	txn.Date = parsed
	txn.Polarity = model.Polarity(polarity)
	txn.Source = model.ClassificationSource(source)
	txn.OriginalLine = originalLine.String
	if createdAt.Valid {
		txn.CreatedAt = createdAt.Time
	}
	return &txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
