package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/pattern"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <description>",
		Short: "Categorize a single description",
		Long: `Run one description through the rules and the semantic model without
saving anything. Useful for checking a new rule or a catalog prompt.

The sign of --amount picks the income or expense catalog.`,
		Example: `  budget classify "WOOLWORTHS 1234 SYDNEY" --amount -52.10
  budget classify "ACME PTY LTD" --amount 3000 --semantic-only`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().Float64("amount", -1, "signed amount; negative for expenses")
	cmd.Flags().Bool("semantic-only", false, "skip the rules and show the semantic result")
	cmd.Flags().Duration("model-timeout", defaultModelTimeout, "how long to wait for the semantic model")

	_ = viper.BindPFlag("classify.amount", cmd.Flags().Lookup("amount"))
	_ = viper.BindPFlag("classify.semantic_only", cmd.Flags().Lookup("semantic-only"))
	_ = viper.BindPFlag("classify.model_timeout", cmd.Flags().Lookup("model-timeout"))

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	description := strings.Join(args, " ")
	amount := viper.GetFloat64("classify.amount")
	polarity := model.PolarityOf(amount)

	setup, err := newClassifierSetup(ctx, true)
	if err != nil {
		return err
	}
	defer setup.Close()

	setup.waitForModel(ctx, viper.GetDuration("classify.model_timeout"))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Description", description})
	table.Append([]string{"Normalized", setup.normalizer.Normalize(description)})
	table.Append([]string{"Polarity", string(polarity)})

	if viper.GetBool("classify.semantic_only") {
		result, err := setup.dispatcher.ClassifyText(ctx, description, setup.catalog.For(polarity))
		if err != nil {
			return err
		}
		table.Append([]string{"Category", result.Category})
		table.Append([]string{"Score", cli.FormatScore(result.Score, setup.dispatcher.Threshold())})
		table.Render()
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	stored, err := store.GetRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to get rules: %w", err)
	}
	outcome, err := setup.dispatcher.Categorize(ctx, description, amount, pattern.NewMatcher(stored, setup.normalizer))
	if err != nil {
		return err
	}

	table.Append([]string{"Category", outcome.Category})
	table.Append([]string{"Source", string(outcome.Source)})
	if outcome.RuleID != "" {
		table.Append([]string{"Rule", outcome.RuleID})
	}
	if outcome.Source != model.SourceRule {
		table.Append([]string{"Score", cli.FormatScore(outcome.Score, setup.dispatcher.Threshold())})
	}
	if outcome.SemanticSkipped {
		table.Append([]string{"Note", "semantic model unavailable"})
	}
	table.Render()

	return nil
}
