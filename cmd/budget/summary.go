package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/common"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/service"
	"github.com/Veraticus/family-budget/internal/storage"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show category and monthly totals for a year",
		Long: `Show income and expense totals per category for one year, along with the
per-month income and spending, the running balance from the initial capital
setting, and a year-end projection from the average monthly savings.

The year defaults to the activeYear setting, or the current year.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			settings, err := store.GetSettings(ctx)
			if err != nil {
				return fmt.Errorf("failed to get settings: %w", err)
			}

			year, _ := cmd.Flags().GetInt("year")
			if year == 0 {
				year = time.Now().Year()
				if v, ok := settings[storage.SettingActiveYear]; ok {
					if parsed, err := strconv.Atoi(v); err == nil {
						year = parsed
					}
				}
			}

			totals, err := store.GetCategoryTotals(ctx, year)
			if err != nil {
				return fmt.Errorf("failed to get category totals: %w", err)
			}
			if len(totals) == 0 {
				fmt.Println(cli.FormatInfo(fmt.Sprintf("No transactions in %d.", year)))
				return nil
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("%s Budget summary for %d", cli.ChartIcon, year)))

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Type", "Category", "Transactions", "Total"})
			table.SetBorder(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)

			var income, expense float64
			for _, t := range totals {
				if t.Polarity == model.PolarityIncome {
					income += t.Total
				} else {
					expense += t.Total
				}
				table.Append([]string{
					string(t.Polarity),
					t.Category,
					strconv.Itoa(t.Count),
					fmt.Sprintf("%.2f", t.Total),
				})
			}
			table.Render()

			months, err := store.GetMonthlyTotals(ctx, year)
			if err != nil {
				return fmt.Errorf("failed to get monthly totals: %w", err)
			}

			fmt.Println()
			monthly := tablewriter.NewWriter(os.Stdout)
			monthly.SetHeader([]string{"Month", "Income", "Expenses", "Net"})
			monthly.SetBorder(false)
			monthly.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			monthly.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, m := range months {
				monthly.Append([]string{
					m.Month,
					fmt.Sprintf("%.2f", m.Income),
					fmt.Sprintf("%.2f", m.Expense),
					fmt.Sprintf("%.2f", m.Net()),
				})
			}
			monthly.Render()

			capital, err := initialCapital(settings)
			if err != nil {
				return err
			}
			avgSavings, predicted := projectYearEnd(capital, months)

			content := fmt.Sprintf("  • Income: %s\n", cli.FormatAmount(income)) +
				fmt.Sprintf("  • Expenses: %s\n", cli.FormatAmount(expense)) +
				fmt.Sprintf("  • Net: %s\n", cli.FormatAmount(income+expense)) +
				fmt.Sprintf("  • Initial capital: %s\n", cli.FormatAmount(capital)) +
				fmt.Sprintf("  • Balance: %s\n", cli.FormatAmount(capital+income+expense)) +
				fmt.Sprintf("  • Average monthly savings: %s\n", cli.FormatAmount(avgSavings)) +
				fmt.Sprintf("  • Predicted year end: %s", cli.FormatAmount(predicted))
			fmt.Println(cli.RenderBox("Totals", content))
			return nil
		},
	}

	cmd.Flags().Int("year", 0, "calendar year (default: activeYear setting)")
	return cmd
}

// projectYearEnd averages net savings over the months that have transactions
// and extends that average to a full year on top of the initial capital.
func projectYearEnd(capital float64, months []service.MonthlyTotal) (avgSavings, predicted float64) {
	var net float64
	for _, m := range months {
		net += m.Net()
	}
	active := max(len(months), 1)
	avgSavings = net / float64(active)
	return avgSavings, capital + avgSavings*12
}

func initialCapital(settings map[string]string) (float64, error) {
	v, ok := settings[storage.SettingInitialCapital]
	if !ok {
		return 0, nil
	}
	capital, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, common.NewUserError(
			fmt.Sprintf("Setting %s is not a number: %q", storage.SettingInitialCapital, v),
			errors.Join(common.ErrInvalidConfig, err))
	}
	return capital, nil
}
