package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/family-budget/internal/model"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the category catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories and the prompts the semantic model compares against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			polarityFlag, _ := cmd.Flags().GetString("polarity")
			polarity, err := parsePolarityFlag(polarityFlag)
			if err != nil {
				return err
			}

			fmt.Printf("Catalog version %s\n\n", cat.Version)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Type", "Category", "Prompt"})
			table.SetBorder(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)

			for _, p := range []model.Polarity{model.PolarityIncome, model.PolarityExpense} {
				if !polarity.Matches(p) {
					continue
				}
				for _, c := range cat.For(p) {
					table.Append([]string{string(p), c.Name, c.Prompt})
				}
			}
			table.Render()
			return nil
		},
	}
	list.Flags().String("polarity", string(model.PolarityAny), "income, expense or any")

	cmd.AddCommand(list)
	return cmd
}
