package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/common"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/service"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txns"},
		Short:   "Browse and correct stored transactions",
	}

	cmd.AddCommand(transactionsListCmd())
	cmd.AddCommand(transactionsSetCmd())

	return cmd
}

func transactionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var filter service.TransactionFilter
			filter.Year, _ = cmd.Flags().GetInt("year")
			filter.Category, _ = cmd.Flags().GetString("category")
			filter.UncategorizedOnly, _ = cmd.Flags().GetBool("uncategorized")
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			txns, err := store.GetTransactions(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to get transactions: %w", err)
			}

			if len(txns) == 0 {
				fmt.Println(cli.FormatInfo("No transactions found."))
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Date", "Amount", "Description", "Category", "Source", "Confidence", "ID"})
			table.SetBorder(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, txn := range txns {
				table.Append([]string{
					txn.Date.Format("2006-01-02"),
					fmt.Sprintf("%.2f", txn.Amount),
					txn.Description,
					txn.Category,
					string(txn.Source),
					fmt.Sprintf("%.3f", txn.Confidence),
					txn.ID,
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("year", 0, "only this calendar year")
	cmd.Flags().String("category", "", "only this category")
	cmd.Flags().Bool("uncategorized", false, "only uncategorized transactions")
	cmd.Flags().Int("limit", 50, "maximum rows (0 for all)")

	return cmd
}

func transactionsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <category>",
		Short: "Set a transaction's category by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			txn, err := store.GetTransactionByID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}

			category := args[1]
			if category != model.Uncategorized && !slices.Contains(cat.Names(txn.Polarity), category) {
				return common.NewUserError(
					fmt.Sprintf("%q is not an %s category; see 'budget catalog list'", category, txn.Polarity), nil)
			}

			if err := store.UpdateTransactionCategory(ctx, txn.ID, category, model.SourceUser, 1); err != nil {
				return fmt.Errorf("failed to update transaction: %w", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s → %s", txn.Description, category)))
			return nil
		},
	}
}
