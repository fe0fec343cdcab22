package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/spf13/cobra"
)

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect the semantic model",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Load the embedding model and report whether it is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			timeout, _ := cmd.Flags().GetDuration("timeout")

			fmt.Println(cli.FormatInfo(fmt.Sprintf("Model directory: %s", appConfig.Model.Dir)))

			setup, err := newClassifierSetup(ctx, true)
			if err != nil {
				return err
			}
			defer setup.Close()

			start := time.Now()
			setup.waitForModel(ctx, timeout)

			state, loadErr := setup.dispatcher.ModelState()
			switch state {
			case embedding.StateReady:
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s Ready in %s (threshold %.2f, %d income / %d expense categories)",
					cli.ModelIcon, time.Since(start).Round(time.Millisecond), setup.dispatcher.Threshold(),
					len(setup.catalog.Income), len(setup.catalog.Expense))))
			case embedding.StateFailed:
				fmt.Println(cli.FormatError(fmt.Sprintf("Failed: %v", loadErr)))
				fmt.Println(cli.FormatInfo("Imports still work with rules only."))
			default:
				fmt.Println(cli.FormatWarning(fmt.Sprintf("Still %s after %s", state, timeout)))
			}
			return nil
		},
	}
	status.Flags().Duration("timeout", defaultModelTimeout, "how long to wait for the model")

	cmd.AddCommand(status)
	return cmd
}
