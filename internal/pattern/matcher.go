package pattern

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/family-budget/internal/model"
)

type compiledRule struct {
	keyword string
	rule    Rule
}

// Matcher evaluates keyword rules in stored order.
type Matcher struct {
	rules []compiledRule
}

var _ RuleMatcher = (*Matcher)(nil)

// NewMatcher creates a matcher over rules, ordered by Position. Keywords are
// normalized once here; rules whose keyword normalizes to nothing are dropped.
func NewMatcher(rules []Rule, normalizer *Normalizer) *Matcher {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	m := &Matcher{rules: make([]compiledRule, 0, len(ordered))}
	for _, rule := range ordered {
		keyword := normalizer.NormalizeKeyword(rule.Keyword)
		if keyword == "" {
			slog.Warn("Ignoring rule with empty keyword", "rule_id", rule.ID, "keyword", rule.Keyword)
			continue
		}
		m.rules = append(m.rules, compiledRule{keyword: keyword, rule: rule})
	}
	return m
}

// Match returns the first rule whose polarity applies and whose keyword is a
// substring of the normalized description.
func (m *Matcher) Match(normalized string, polarity model.Polarity) (Rule, bool) {
	for _, r := range m.rules {
		if !r.rule.Polarity.Matches(polarity) {
			continue
		}
		if strings.Contains(normalized, r.keyword) {
			return r.rule, true
		}
	}
	return Rule{}, false
}

// Len returns the number of usable rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}
