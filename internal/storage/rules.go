package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Veraticus/family-budget/internal/model"
)

const ruleColumns = `id, keyword, category, rule_type, position, created_at`

// CreateRule stores a rule at the end of the evaluation order. A missing ID is generated.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Polarity == "" {
		rule.Polarity = model.PolarityAny
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM category_rules`).Scan(&next); err != nil {
			return fmt.Errorf("failed to get next rule position: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO category_rules (id, keyword, category, rule_type, position) VALUES (?, ?, ?, ?, ?)`,
			rule.ID, rule.Keyword, rule.Category, string(rule.Polarity), next)
		if err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}
		rule.Position = next
		return nil
	})
}

// GetRules returns every rule in evaluation order.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getRules(ctx, s.db)
}

func getRules(ctx context.Context, q queryer) ([]model.CategoryRule, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+ruleColumns+" FROM category_rules ORDER BY position, created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategoryRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// GetRule retrieves a single rule.
func (s *SQLiteStorage) GetRule(ctx context.Context, id string) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM category_rules WHERE id = ?", id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule, err
}

// UpdateRule changes a rule's keyword, category and polarity. Position is
// changed only through MoveRule.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.CategoryRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := validateString(rule.ID, "id"); err != nil {
		return err
	}

	polarity, _ := model.ParsePolarity(string(rule.Polarity))
	res, err := s.db.ExecContext(ctx,
		`UPDATE category_rules SET keyword = ?, category = ?, rule_type = ? WHERE id = ?`,
		rule.Keyword, rule.Category, string(polarity), rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}
	rule.Polarity = polarity
	return nil
}

// DeleteRule removes a rule and closes the gap in the evaluation order.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM category_rules WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete rule: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		return renumberRules(ctx, tx, nil)
	})
}

// MoveRule places a rule at a 1-based position, shifting the others. Positions
// past the end move the rule last.
func (s *SQLiteStorage) MoveRule(ctx context.Context, id string, position int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if position < 1 {
		return fmt.Errorf("%w: position must be at least 1", ErrInvalidRule)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		rules, err := getRules(ctx, tx)
		if err != nil {
			return err
		}

		from := -1
		for i, r := range rules {
			if r.ID == id {
				from = i
				break
			}
		}
		if from < 0 {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}

		ids := make([]string, 0, len(rules))
		for i, r := range rules {
			if i != from {
				ids = append(ids, r.ID)
			}
		}
		to := position - 1
		if to > len(ids) {
			to = len(ids)
		}
		ids = append(ids[:to], append([]string{id}, ids[to:]...)...)

		return renumberRules(ctx, tx, ids)
	})
}

// renumberRules rewrites positions as 1..n in the given order, or in the
// current order when ids is nil.
func renumberRules(ctx context.Context, tx *sql.Tx, ids []string) error {
	if ids == nil {
		rules, err := getRules(ctx, tx)
		if err != nil {
			return err
		}
		for _, r := range rules {
			ids = append(ids, r.ID)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE category_rules SET position = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, i+1, id); err != nil {
			return fmt.Errorf("failed to reposition rule %s: %w", id, err)
		}
	}
	return nil
}

func scanRule(row scanner) (*model.CategoryRule, error) {
	var (
		rule      model.CategoryRule
		polarity  string
		createdAt sql.NullTime
	)
	if err := row.Scan(&rule.ID, &rule.Keyword, &rule.Category, &polarity, &rule.Position, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	rule.Polarity = model.Polarity(polarity)
	if createdAt.Valid {
		rule.CreatedAt = createdAt.Time
	}
	return &rule, nil
}
