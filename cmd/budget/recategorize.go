package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/importer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func recategorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recategorize",
		Short: "Run rules and the semantic model again over uncategorized transactions",
		Long: `Re-run categorization for every transaction that is still Uncategorized.
Use it after adding rules, or after an import that ran before the semantic
model had loaded. Categories you set by hand are never changed.`,
		Args: cobra.NoArgs,
		RunE: runRecategorize,
	}

	cmd.Flags().Int("year", 0, "only this calendar year")
	cmd.Flags().Bool("no-model", false, "apply rules only")
	cmd.Flags().Duration("model-timeout", defaultModelTimeout, "how long to wait for the semantic model")

	_ = viper.BindPFlag("recategorize.year", cmd.Flags().Lookup("year"))
	_ = viper.BindPFlag("recategorize.no_model", cmd.Flags().Lookup("no-model"))
	_ = viper.BindPFlag("recategorize.model_timeout", cmd.Flags().Lookup("model-timeout"))

	return cmd
}

func runRecategorize(cmd *cobra.Command, _ []string) error {
	interruptHandler := cli.NewInterruptHandler(os.Stderr, "recategorize", "Run it again; finished transactions are kept.")
	ctx, stop := interruptHandler.HandleInterrupts(cmd.Context())
	defer stop()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	useModel := !viper.GetBool("recategorize.no_model")
	setup, err := newClassifierSetup(ctx, useModel)
	if err != nil {
		return err
	}
	defer setup.Close()

	if useModel {
		setup.waitForModel(ctx, viper.GetDuration("recategorize.model_timeout"))
	}

	summary, err := importer.New(store, setup.dispatcher, importer.WithProgress(os.Stderr)).
		Recategorize(ctx, viper.GetInt("recategorize.year"))
	if err != nil {
		if interruptHandler.WasInterrupted() {
			return nil
		}
		return err
	}

	content := fmt.Sprintf("  • Checked: %d\n", summary.Parsed) +
		fmt.Sprintf("  • Updated: %d\n", summary.Updated) +
		fmt.Sprintf("  • By rule: %d\n", summary.ByRule) +
		fmt.Sprintf("  • By semantic model: %d\n", summary.BySemantic) +
		fmt.Sprintf("  • Still uncategorized: %d\n", summary.Uncategorized+summary.Failed) +
		fmt.Sprintf("  • Time taken: %s", summary.Duration.Round(time.Millisecond))
	fmt.Println(cli.RenderBox("Recategorize complete", content))
	return nil
}
