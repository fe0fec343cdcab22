package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolarityOf(t *testing.T) {
	assert.Equal(t, PolarityIncome, PolarityOf(0))
	assert.Equal(t, PolarityIncome, PolarityOf(12.5))
	assert.Equal(t, PolarityExpense, PolarityOf(-0.01))
}

func TestParsePolarity(t *testing.T) {
	tests := []struct {
		input   string
		want    Polarity
		wantErr bool
	}{
		{input: "income", want: PolarityIncome},
		{input: "expense", want: PolarityExpense},
		{input: "any", want: PolarityAny},
		{input: "", want: PolarityAny},
		{input: "refund", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePolarity(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolarity_Matches(t *testing.T) {
	assert.True(t, PolarityAny.Matches(PolarityIncome))
	assert.True(t, PolarityAny.Matches(PolarityExpense))
	assert.True(t, PolarityIncome.Matches(PolarityIncome))
	assert.False(t, PolarityIncome.Matches(PolarityExpense))
	assert.False(t, PolarityExpense.Matches(PolarityIncome))
}

func TestTransaction_GenerateHash(t *testing.T) {
	base := Transaction{
		Date:        time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC),
		Description: "Woolworths Supermarket Sydney",
		Amount:      -218.13,
	}

	same := base
	same.Description = "  WOOLWORTHS SUPERMARKET SYDNEY "
	assert.Equal(t, base.GenerateHash(), same.GenerateHash())

	other := base
	other.Amount = -218.14
	assert.NotEqual(t, base.GenerateHash(), other.GenerateHash())

	otherDay := base
	otherDay.Date = otherDay.Date.AddDate(0, 0, 1)
	assert.NotEqual(t, base.GenerateHash(), otherDay.GenerateHash())
}

func TestTransaction_IsUncategorized(t *testing.T) {
	assert.True(t, (&Transaction{}).IsUncategorized())
	assert.True(t, (&Transaction{Category: Uncategorized}).IsUncategorized())
	assert.False(t, (&Transaction{Category: "Groceries"}).IsUncategorized())
}

func TestClassificationSource_Valid(t *testing.T) {
	for _, s := range []ClassificationSource{SourceNone, SourceRule, SourceSemantic, SourceUser} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, ClassificationSource("AI").Valid())
}
