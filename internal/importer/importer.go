// Package importer runs parsed bank statements through the categorization
// dispatcher and stores the results.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/family-budget/internal/engine"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/pattern"
	"github.com/Veraticus/family-budget/internal/service"
	"github.com/schollz/progressbar/v3"
)

// Parser turns a statement file into uncategorized transactions.
type Parser interface {
	ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error)
}

// Categorizer assigns a category to one transaction.
type Categorizer interface {
	Categorize(ctx context.Context, description string, amount float64, rules pattern.RuleMatcher) (engine.Outcome, error)
	Normalizer() *pattern.Normalizer
}

// Summary contains statistics about an import or recategorize run.
type Summary struct {
	Parsed          int
	Saved           int
	Duplicates      int
	Updated         int
	ByRule          int
	BySemantic      int
	Uncategorized   int
	Failed          int
	SemanticSkipped int
	Duration        time.Duration
}

// Importer categorizes and persists transactions.
type Importer struct {
	storage     service.Storage
	categorizer Categorizer
	progress    io.Writer
}

// Option configures an Importer.
type Option func(*Importer)

// WithProgress draws a progress bar on w while categorizing.
func WithProgress(w io.Writer) Option {
	return func(i *Importer) {
		i.progress = w
	}
}

// New creates an importer.
func New(storage service.Storage, categorizer Categorizer, opts ...Option) *Importer {
	i := &Importer{
		storage:     storage,
		categorizer: categorizer,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import parses reader, categorizes every row in order and saves the batch.
// A row whose categorization fails is logged and stored as Uncategorized. Rows
// already present in the database are skipped. Cancelling ctx stops the run
// before anything is saved.
func (i *Importer) Import(ctx context.Context, parser Parser, reader io.Reader) (*Summary, error) {
	start := time.Now()

	transactions, err := parser.ParseFile(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}

	summary := &Summary{Parsed: len(transactions)}
	if len(transactions) == 0 {
		slog.Info("No transactions to import")
		return summary, nil
	}

	matcher, err := i.loadMatcher(ctx)
	if err != nil {
		return nil, err
	}

	bar := i.newProgressBar(len(transactions), "Categorizing transactions...")
	for idx := range transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i.categorize(ctx, &transactions[idx], matcher, summary)
		i.advance(bar)
	}

	saved, err := i.storage.SaveTransactions(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to save transactions: %w", err)
	}
	summary.Saved = saved
	summary.Duplicates = len(transactions) - saved
	summary.Duration = time.Since(start)

	slog.Info("Import complete",
		"parsed", summary.Parsed,
		"saved", summary.Saved,
		"duplicates", summary.Duplicates,
		"rule", summary.ByRule,
		"semantic", summary.BySemantic,
		"uncategorized", summary.Uncategorized,
		"failed", summary.Failed)

	return summary, nil
}

// Recategorize runs the dispatcher again over stored Uncategorized
// transactions, typically after adding rules or once the model has loaded.
// Categories the user chose by hand are never touched.
func (i *Importer) Recategorize(ctx context.Context, year int) (*Summary, error) {
	start := time.Now()

	transactions, err := i.storage.GetTransactions(ctx, service.TransactionFilter{
		Year:              year,
		UncategorizedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get uncategorized transactions: %w", err)
	}

	summary := &Summary{Parsed: len(transactions)}
	if len(transactions) == 0 {
		slog.Info("No uncategorized transactions")
		return summary, nil
	}

	matcher, err := i.loadMatcher(ctx)
	if err != nil {
		return nil, err
	}

	bar := i.newProgressBar(len(transactions), "Recategorizing transactions...")
	for idx := range transactions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		txn := &transactions[idx]
		if txn.Source == model.SourceUser {
			i.advance(bar)
			continue
		}

		i.categorize(ctx, txn, matcher, summary)
		if txn.Source != model.SourceNone {
			if err := i.storage.UpdateTransactionCategory(ctx, txn.ID, txn.Category, txn.Source, txn.Confidence); err != nil {
				return summary, fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
			}
			summary.Updated++
		}
		i.advance(bar)
	}
	summary.Duration = time.Since(start)

	slog.Info("Recategorize complete",
		"checked", summary.Parsed,
		"updated", summary.Updated,
		"failed", summary.Failed)

	return summary, nil
}

func (i *Importer) loadMatcher(ctx context.Context) (*pattern.Matcher, error) {
	rules, err := i.storage.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	return pattern.NewMatcher(rules, i.categorizer.Normalizer()), nil
}

func (i *Importer) categorize(ctx context.Context, txn *model.Transaction, matcher pattern.RuleMatcher, summary *Summary) {
	outcome, err := i.categorizer.Categorize(ctx, txn.Description, txn.Amount, matcher)

	txn.Polarity = model.PolarityOf(txn.Amount)
	if err != nil {
		slog.Warn("Failed to categorize transaction",
			"id", txn.ID,
			"description", txn.Description,
			"error", err)
		summary.Failed++
		txn.Category = model.Uncategorized
		txn.Source = model.SourceNone
		txn.Confidence = 0
		return
	}

	txn.Category = outcome.Category
	txn.Source = outcome.Source
	txn.Confidence = outcome.Score
	if outcome.SemanticSkipped {
		summary.SemanticSkipped++
	}

	switch outcome.Source {
	case model.SourceRule:
		summary.ByRule++
	case model.SourceSemantic:
		summary.BySemantic++
	default:
		summary.Uncategorized++
	}
}

func (i *Importer) newProgressBar(total int, description string) *progressbar.ProgressBar {
	if i.progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(i.progress),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(i.progress); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (i *Importer) advance(bar *progressbar.ProgressBar) {
	if bar == nil {
		return
	}
	if err := bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}
