package pattern

import (
	"testing"

	"github.com/Veraticus/family-budget/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestMatcher_Match(t *testing.T) {
	normalizer := DefaultNormalizer()

	tests := []struct {
		name        string
		description string
		polarity    model.Polarity
		wantID      string
		rules       []Rule
		wantMatch   bool
	}{
		{
			name:        "keyword substring matches",
			rules:       []Rule{{ID: "r1", Keyword: "netflix", Category: "Subscriptions", Polarity: model.PolarityAny}},
			description: "NETFLIX.COM",
			polarity:    model.PolarityExpense,
			wantID:      "r1",
			wantMatch:   true,
		},
		{
			name:        "keyword is case insensitive",
			rules:       []Rule{{ID: "r1", Keyword: "NetFlix", Category: "Subscriptions", Polarity: model.PolarityAny}},
			description: "netflix com",
			polarity:    model.PolarityExpense,
			wantID:      "r1",
			wantMatch:   true,
		},
		{
			name:        "punctuated keyword matches normalized description",
			rules:       []Rule{{ID: "r1", Keyword: "uber*eats", Category: "Eating Out", Polarity: model.PolarityExpense}},
			description: "UBER *EATS HELP.UBER.COM",
			polarity:    model.PolarityExpense,
			wantID:      "r1",
			wantMatch:   true,
		},
		{
			name:        "polarity mismatch skipped",
			rules:       []Rule{{ID: "r1", Keyword: "transfer", Category: "Transfers In", Polarity: model.PolarityIncome}},
			description: "Transfer to savings",
			polarity:    model.PolarityExpense,
		},
		{
			name: "first in stored order wins",
			rules: []Rule{
				{ID: "late", Keyword: "woolworths", Category: "General", Polarity: model.PolarityAny, Position: 2},
				{ID: "early", Keyword: "woolworths", Category: "Groceries", Polarity: model.PolarityAny, Position: 1},
			},
			description: "Woolworths Metro",
			polarity:    model.PolarityExpense,
			wantID:      "early",
			wantMatch:   true,
		},
		{
			name: "non-matching polarity does not block later rule",
			rules: []Rule{
				{ID: "income", Keyword: "amazon", Category: "Refunds", Polarity: model.PolarityIncome, Position: 1},
				{ID: "expense", Keyword: "amazon", Category: "Shopping", Polarity: model.PolarityExpense, Position: 2},
			},
			description: "AMAZON MKTPLACE",
			polarity:    model.PolarityExpense,
			wantID:      "expense",
			wantMatch:   true,
		},
		{
			name:        "empty polarity means any",
			rules:       []Rule{{ID: "r1", Keyword: "salary", Category: "Salary"}},
			description: "ACME SALARY",
			polarity:    model.PolarityIncome,
			wantID:      "r1",
			wantMatch:   true,
		},
		{
			name:        "symbol-only keyword never matches",
			rules:       []Rule{{ID: "r1", Keyword: "***", Category: "General", Polarity: model.PolarityAny}},
			description: "anything at all",
			polarity:    model.PolarityExpense,
		},
		{
			name:        "no rules",
			description: "Woolworths",
			polarity:    model.PolarityExpense,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.rules, normalizer)
			rule, ok := m.Match(normalizer.Normalize(tt.description), tt.polarity)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantID, rule.ID)
			}
		})
	}
}

func TestNewMatcher_DoesNotReorderInput(t *testing.T) {
	rules := []Rule{
		{ID: "b", Keyword: "b", Position: 2},
		{ID: "a", Keyword: "a", Position: 1},
		{ID: "empty", Keyword: "42", Position: 3},
	}
	m := NewMatcher(rules, DefaultNormalizer())

	assert.Equal(t, "b", rules[0].ID)
	assert.Equal(t, 2, m.Len())
}
