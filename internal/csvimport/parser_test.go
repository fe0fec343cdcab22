package csvimport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/family-budget/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `29/01/2026,"-218.13","WOOLWORTHS 1234 SYDNEY NS AUS","+2640.22"
30/01/2026,"+3,500.00","ACME PTY LTD SALARY","+6140.22"
1/2/2026,-15.99,NETFLIX.COM
short,row
`

func fixedParser() *Parser {
	p := NewParser("everyday")
	p.now = func() time.Time { return time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC) }
	return p
}

func TestParseFile(t *testing.T) {
	txns, err := fixedParser().ParseFile(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, txns, 3)

	groceries := txns[0]
	assert.Equal(t, "2026-01-29", groceries.Date.Format("2006-01-02"))
	assert.Equal(t, -218.13, groceries.Amount)
	assert.Equal(t, "WOOLWORTHS 1234 SYDNEY NS AUS", groceries.Description)
	assert.Equal(t, model.PolarityExpense, groceries.Polarity)
	assert.Equal(t, model.Uncategorized, groceries.Category)
	assert.Equal(t, model.SourceNone, groceries.Source)
	assert.Equal(t, "everyday", groceries.AccountID)
	assert.Equal(t, "29/01/2026,-218.13,WOOLWORTHS 1234 SYDNEY NS AUS,+2640.22", groceries.OriginalLine)
	assert.NotEmpty(t, groceries.ID)
	assert.Equal(t, groceries.GenerateHash(), groceries.Hash)

	salary := txns[1]
	assert.Equal(t, 3500.00, salary.Amount)
	assert.Equal(t, model.PolarityIncome, salary.Polarity)

	netflix := txns[2]
	assert.Equal(t, "2026-02-01", netflix.Date.Format("2006-01-02"))
	assert.Equal(t, -15.99, netflix.Amount)

	assert.NotEqual(t, txns[0].ID, txns[1].ID)
}

func TestParseFile_Fallbacks(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantDate     string
		wantPolarity model.Polarity
		wantAmount   float64
	}{
		{
			name:         "bad amount is zero",
			line:         "02/03/2026,abc,Mystery",
			wantDate:     "2026-03-02",
			wantAmount:   0,
			wantPolarity: model.PolarityIncome,
		},
		{
			name:         "bad date is import day",
			line:         "yesterday,-5.00,Coffee",
			wantDate:     "2026-03-04",
			wantAmount:   -5,
			wantPolarity: model.PolarityExpense,
		},
		{
			name:         "impossible date is import day",
			line:         "31/02/2026,-5.00,Coffee",
			wantDate:     "2026-03-04",
			wantAmount:   -5,
			wantPolarity: model.PolarityExpense,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := fixedParser().ParseFile(context.Background(), strings.NewReader(tt.line))
			require.NoError(t, err)
			require.Len(t, txns, 1)
			assert.Equal(t, tt.wantDate, txns[0].Date.Format("2006-01-02"))
			assert.Equal(t, tt.wantAmount, txns[0].Amount)
			assert.Equal(t, tt.wantPolarity, txns[0].Polarity)
		})
	}
}

func TestParseFile_Empty(t *testing.T) {
	txns, err := fixedParser().ParseFile(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestParseFile_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixedParser().ParseFile(ctx, strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "-218.13", want: -218.13},
		{in: `"1,234.50"`, want: 1234.50},
		{in: " +42 ", want: 42},
		{in: "", want: 0},
		{in: "$12", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAmount(tt.in))
		})
	}
}
