package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Categorize the remaining transactions by hand",
		Long: `Walk through uncategorized transactions one at a time. For each one you can
accept the semantic model's suggestion, pick a category, or pick a category and
save a keyword rule so similar transactions are handled automatically next time.`,
		Args: cobra.NoArgs,
		RunE: runReview,
	}

	cmd.Flags().Int("year", 0, "only this calendar year")
	cmd.Flags().Int("limit", 0, "stop after this many transactions (0 for all)")
	cmd.Flags().Duration("model-timeout", defaultModelTimeout, "how long to wait for the semantic model")

	_ = viper.BindPFlag("review.year", cmd.Flags().Lookup("year"))
	_ = viper.BindPFlag("review.limit", cmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("review.model_timeout", cmd.Flags().Lookup("model-timeout"))

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	interruptHandler := cli.NewInterruptHandler(os.Stdout, "review", "Run 'budget review' to pick up where you left off.")
	ctx, stop := interruptHandler.HandleInterrupts(cmd.Context())
	defer stop()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	txns, err := store.GetTransactions(ctx, service.TransactionFilter{
		Year:              viper.GetInt("review.year"),
		Limit:             viper.GetInt("review.limit"),
		UncategorizedOnly: true,
	})
	if err != nil {
		return fmt.Errorf("failed to get uncategorized transactions: %w", err)
	}
	if len(txns) == 0 {
		fmt.Println(cli.FormatSuccess("Nothing to review, every transaction has a category."))
		return nil
	}

	setup, err := newClassifierSetup(ctx, true)
	if err != nil {
		return err
	}
	defer setup.Close()
	modelReady := setup.waitForModel(ctx, viper.GetDuration("review.model_timeout"))

	validator, err := newRuleValidator()
	if err != nil {
		return err
	}

	reviewer := cli.NewReviewer(os.Stdin, os.Stdout, setup.dispatcher.Threshold())
	fmt.Println(cli.FormatTitle(fmt.Sprintf("%d transactions to review", len(txns))))

	for _, txn := range txns {
		item := cli.ReviewItem{
			Transaction: txn,
			Categories:  setup.catalog.Names(txn.Polarity),
		}
		if modelReady {
			result, err := setup.dispatcher.ClassifyText(ctx, txn.Description, setup.catalog.For(txn.Polarity))
			if err != nil {
				slog.Warn("Failed to get suggestion", "id", txn.ID, "error", err)
			} else if result.Category != model.Uncategorized {
				item.Suggestion = result.Category
				item.Score = result.Score
			}
		}

		decision, err := reviewer.Review(ctx, item)
		if err != nil {
			if interruptHandler.WasInterrupted() || errors.Is(err, cli.ErrInputClosed) || errors.Is(err, cli.ErrInputCancelled) {
				break
			}
			return err
		}
		if decision.Quit {
			break
		}
		if decision.Skip {
			continue
		}

		if err := store.UpdateTransactionCategory(ctx, txn.ID, decision.Category, model.SourceUser, 1); err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}

		if decision.RuleKeyword != "" {
			rule := model.CategoryRule{
				Keyword:  decision.RuleKeyword,
				Category: decision.Category,
				Polarity: txn.Polarity,
			}
			if err := validator.ValidateRule(rule); err != nil {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("Rule not saved: %v", err)))
				continue
			}
			for _, warning := range validator.Warnings(rule) {
				fmt.Println(cli.FormatWarning(warning))
			}
			if err := store.CreateRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s Rule #%d saved", cli.RuleIcon, rule.Position)))
		}
	}

	stats := reviewer.Stats()
	content := fmt.Sprintf("  • Categorized: %d\n", stats.Categorized) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Rules created: %d", stats.RulesCreated)
	fmt.Println(cli.RenderBox("Review complete", content))

	if stats.RulesCreated > 0 {
		fmt.Println(cli.FormatInfo("Run 'budget recategorize' to apply the new rules to the rest."))
	}
	return nil
}
