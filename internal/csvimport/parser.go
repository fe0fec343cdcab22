// Package csvimport reads the header-less CSV statements exported by
// Australian retail banks: date (DD/MM/YYYY), signed amount, description and
// an optional running balance.
package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/family-budget/internal/model"
	"github.com/google/uuid"
)

const dateLayout = "2/1/2006"

// minFields is date, amount and description. Balance is ignored.
const minFields = 3

// Parser converts CSV rows into uncategorized transactions.
type Parser struct {
	now       func() time.Time
	accountID string
}

// NewParser creates a parser that tags every transaction with accountID.
func NewParser(accountID string) *Parser {
	return &Parser{
		accountID: accountID,
		now:       time.Now,
	}
}

// ParseFile reads every record from reader. Short rows are skipped; a
// malformed CSV stream is an error.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var transactions []model.Transaction
	skipped := 0

	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", row, err)
		}

		if len(record) < minFields {
			skipped++
			continue
		}

		transactions = append(transactions, p.convertRecord(row, record))
	}

	slog.Info("Parsed CSV file",
		"total_transactions", len(transactions),
		"skipped_rows", skipped)

	return transactions, nil
}

func (p *Parser) convertRecord(row int, record []string) model.Transaction {
	amount := parseAmount(record[1])

	date, err := time.Parse(dateLayout, strings.TrimSpace(record[0]))
	if err != nil {
		today := p.now()
		date = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		slog.Warn("Unparseable date, using import date",
			"row", row,
			"value", record[0])
	}

	tx := model.Transaction{
		ID:           uuid.NewString(),
		Date:         date,
		Amount:       amount,
		Description:  strings.TrimSpace(record[2]),
		Polarity:     model.PolarityOf(amount),
		AccountID:    p.accountID,
		Category:     model.Uncategorized,
		Source:       model.SourceNone,
		OriginalLine: strings.Join(record, ","),
	}
	tx.Hash = tx.GenerateHash()

	return tx
}

// parseAmount strips quotes and thousands separators. Anything still
// unparseable counts as zero.
func parseAmount(raw string) float64 {
	cleaned := strings.NewReplacer(`"`, "", ",", "").Replace(strings.TrimSpace(raw))
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return amount
}
