package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/family-budget/internal/catalog"
	"github.com/Veraticus/family-budget/internal/model"
)

// Validator checks rules before they are stored.
type Validator struct {
	catalog    *catalog.Catalog
	normalizer *Normalizer
}

// NewValidator creates a rule validator against a catalog.
func NewValidator(cat *catalog.Catalog, normalizer *Normalizer) *Validator {
	return &Validator{catalog: cat, normalizer: normalizer}
}

// ValidateRule ensures the keyword survives normalization and the category
// exists for the rule's polarity.
func (v *Validator) ValidateRule(rule Rule) error {
	if strings.TrimSpace(rule.Keyword) == "" {
		return fmt.Errorf("rule keyword cannot be empty")
	}
	if v.normalizer.NormalizeKeyword(rule.Keyword) == "" {
		return fmt.Errorf("rule keyword %q has no letters left after normalization", rule.Keyword)
	}

	polarity, err := model.ParsePolarity(string(rule.Polarity))
	if err != nil {
		return err
	}

	if rule.Category == model.Uncategorized {
		return fmt.Errorf("rule cannot assign %q", model.Uncategorized)
	}

	switch polarity {
	case model.PolarityAny:
		if !v.hasCategory(model.PolarityIncome, rule.Category) && !v.hasCategory(model.PolarityExpense, rule.Category) {
			return fmt.Errorf("unknown category %q", rule.Category)
		}
	default:
		if !v.hasCategory(polarity, rule.Category) {
			return fmt.Errorf("category %q is not an %s category", rule.Category, polarity)
		}
	}
	return nil
}

// Warnings reports accepted rules that may not behave as written. A keyword
// containing location words is matched without them, so "SA Water" becomes
// "water" and catches every water bill.
func (v *Validator) Warnings(rule Rule) []string {
	dropped := v.normalizer.GeoTermsIn(rule.Keyword)
	if len(dropped) == 0 {
		return nil
	}
	quoted := make([]string, len(dropped))
	for i, term := range dropped {
		quoted[i] = strconv.Quote(term)
	}
	return []string{fmt.Sprintf("keyword %q matches as %q: location words %s are ignored",
		rule.Keyword, v.normalizer.NormalizeKeyword(rule.Keyword), strings.Join(quoted, ", "))}
}

func (v *Validator) hasCategory(p model.Polarity, name string) bool {
	for _, c := range v.catalog.For(p) {
		if c.Name == name {
			return true
		}
	}
	return false
}
