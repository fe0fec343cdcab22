// Package pattern provides description normalization and deterministic keyword
// rules, the first stage of transaction categorization.
package pattern

import (
	"github.com/Veraticus/family-budget/internal/model"
)

// RuleMatcher finds the rule that categorizes a normalized description.
type RuleMatcher interface {
	// Match returns the first applicable rule, or false when none applies.
	Match(normalized string, polarity model.Polarity) (model.CategoryRule, bool)
}

// Rule is an alias to the model.CategoryRule type for convenience.
type Rule = model.CategoryRule
