package model

import "fmt"

// Uncategorized is the universal fallback label for a transaction that no stage could classify.
const Uncategorized = "Uncategorized"

// Polarity is the sign class of a transaction amount.
type Polarity string

const (
	// PolarityIncome covers amounts greater than or equal to zero.
	PolarityIncome Polarity = "income"
	// PolarityExpense covers negative amounts.
	PolarityExpense Polarity = "expense"
	// PolarityAny is only valid on rules and matches both.
	PolarityAny Polarity = "any"
)

// PolarityOf returns the polarity of a signed amount. Zero counts as income.
func PolarityOf(amount float64) Polarity {
	if amount >= 0 {
		return PolarityIncome
	}
	return PolarityExpense
}

// ParsePolarity validates a textual polarity. An empty string means any.
func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(s) {
	case PolarityIncome, PolarityExpense, PolarityAny:
		return Polarity(s), nil
	case "":
		return PolarityAny, nil
	default:
		return "", fmt.Errorf("invalid polarity %q (want income, expense or any)", s)
	}
}

// Matches reports whether a rule polarity applies to a transaction polarity.
func (p Polarity) Matches(txn Polarity) bool {
	return p == PolarityAny || p == "" || p == txn
}
