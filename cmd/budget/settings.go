package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/common"
	"github.com/Veraticus/family-budget/internal/storage"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change stored settings",
		Long: `Settings live in the database next to your transactions.

Known keys:
  initialCapital  balance before the first imported transaction
  activeYear      default year for 'budget summary'`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all settings",
		Args:  cobra.NoArgs,
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

			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Key", "Value"})
			table.SetBorder(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, k := range keys {
				table.Append([]string{k, settings[k]})
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			value, err := store.GetSetting(ctx, args[0])
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("Setting %q is not set", args[0]), err)
			}
			if err != nil {
				return fmt.Errorf("failed to get setting: %w", err)
			}
			fmt.Println(value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := validateSetting(args[0], args[1]); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			if err := store.SetSetting(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to save setting: %w", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s = %s", args[0], args[1])))
			return nil
		},
	})

	return cmd
}

func validateSetting(key, value string) error {
	switch key {
	case storage.SettingInitialCapital:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return common.NewUserError(fmt.Sprintf("%s must be a number", key), err)
		}
	case storage.SettingActiveYear:
		year, err := strconv.Atoi(value)
		if err != nil || year < 1900 || year > 9999 {
			return common.NewUserError(fmt.Sprintf("%s must be a four digit year", key), err)
		}
	}
	return nil
}
