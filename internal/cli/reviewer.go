package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/family-budget/internal/model"
)

// ReviewItem is one uncategorized transaction shown to the user.
type ReviewItem struct {
	Suggestion  string // Best semantic candidate, empty when the model is unavailable
	Categories  []string
	Transaction model.Transaction
	Score       float64
}

// Decision is what the user chose for a ReviewItem.
type Decision struct {
	Category    string
	RuleKeyword string // Non-empty when the user asked to remember the choice as a rule
	Skip        bool
	Quit        bool
}

// ReviewStats summarizes a review session.
type ReviewStats struct {
	Categorized  int
	Skipped      int
	RulesCreated int
}

// Reviewer walks the user through uncategorized transactions.
type Reviewer struct {
	writer    io.Writer
	reader    *NonBlockingReader
	stats     ReviewStats
	threshold float64
}

// NewReviewer creates a reviewer reading choices from reader.
func NewReviewer(reader io.Reader, writer io.Writer, threshold float64) *Reviewer {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Reviewer{
		reader:    NewNonBlockingReader(reader),
		writer:    writer,
		threshold: threshold,
	}
}

// Review shows one transaction and returns the user's decision.
func (r *Reviewer) Review(ctx context.Context, item ReviewItem) (Decision, error) {
	if _, err := fmt.Fprintln(r.writer, RenderBox("Transaction", r.formatItem(item))); err != nil {
		return Decision{}, fmt.Errorf("failed to write transaction box: %w", err)
	}

	choices := []string{"n", "r", "s", "q"}
	lines := []string{
		"  [N] Choose a category",
		"  [R] Choose a category and remember it as a rule",
		"  [S] Skip",
		"  [Q] Quit review",
	}
	if item.Suggestion != "" {
		choices = append([]string{"a"}, choices...)
		lines = append([]string{fmt.Sprintf("  [A] Accept suggestion: %s", SuccessStyle.Render(item.Suggestion))}, lines...)
	}
	if _, err := fmt.Fprintln(r.writer, strings.Join(lines, "\n")); err != nil {
		return Decision{}, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := r.promptChoice(ctx, "Choice", choices)
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	switch choice {
	case "a":
		decision.Category = item.Suggestion
	case "n", "r":
		category, err := r.promptCategory(ctx, item.Categories)
		if err != nil {
			return Decision{}, err
		}
		decision.Category = category
		if choice == "r" {
			keyword, err := r.promptKeyword(ctx)
			if err != nil {
				return Decision{}, err
			}
			decision.RuleKeyword = keyword
			r.stats.RulesCreated++
		}
	case "s":
		decision.Skip = true
		r.stats.Skipped++
		return decision, nil
	case "q":
		decision.Quit = true
		return decision, nil
	}

	r.stats.Categorized++
	return decision, nil
}

// Stats returns the running totals for this session.
func (r *Reviewer) Stats() ReviewStats {
	return r.stats
}

func (r *Reviewer) formatItem(item ReviewItem) string {
	txn := item.Transaction
	lines := []string{
		fmt.Sprintf("%s  %s", BoldStyle.Render("Date:"), txn.Date.Format("2006-01-02")),
		fmt.Sprintf("%s  %s", BoldStyle.Render("Amount:"), FormatAmount(txn.Amount)),
		fmt.Sprintf("%s  %s", BoldStyle.Render("Description:"), txn.Description),
	}
	if item.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("%s  %s (%s)",
			BoldStyle.Render("Suggestion:"), item.Suggestion, FormatScore(item.Score, r.threshold)))
	} else {
		lines = append(lines, SubtleStyle.Render("No semantic suggestion"))
	}
	return strings.Join(lines, "\n")
}

func (r *Reviewer) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(r.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func (r *Reviewer) promptCategory(ctx context.Context, categories []string) (string, error) {
	for i, name := range categories {
		if _, err := fmt.Fprintf(r.writer, "  %2d. %s\n", i+1, name); err != nil {
			return "", fmt.Errorf("failed to write category list: %w", err)
		}
	}

	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt("Category number")); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}

		n, convErr := strconv.Atoi(input)
		if convErr == nil && n >= 1 && n <= len(categories) {
			return categories[n-1], nil
		}

		if _, err := fmt.Fprintln(r.writer, FormatError(fmt.Sprintf("Enter a number between 1 and %d.", len(categories)))); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func (r *Reviewer) promptKeyword(ctx context.Context) (string, error) {
	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt("Rule keyword")); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		keyword, err := r.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if keyword != "" {
			return keyword, nil
		}

		if _, err := fmt.Fprintln(r.writer, FormatError("Keyword cannot be empty. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}
