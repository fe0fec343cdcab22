package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/common"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/pattern"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage keyword rules",
		Long: `Keyword rules are checked in order before the semantic model. The first
rule whose keyword appears in the normalized description, and whose polarity
fits the amount, decides the category.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesMoveCmd())
	cmd.AddCommand(rulesTestCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			rules, err := store.GetRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println(cli.FormatInfo("No rules yet. Add one with 'budget rules add <keyword> <category>'."))
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"#", "Keyword", "Category", "Polarity", "ID"})
			table.SetBorder(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, r := range rules {
				table.Append([]string{
					strconv.Itoa(r.Position),
					r.Keyword,
					r.Category,
					string(r.Polarity),
					r.ID,
				})
			}
			table.Render()
			return nil
		},
	}
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <keyword> <category>",
		Short: "Add a rule at the end of the list",
		Example: `  budget rules add netflix Subscriptions --polarity expense
  budget rules add "acme pty" Salary --polarity income`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			polarityFlag, _ := cmd.Flags().GetString("polarity")
			polarity, err := parsePolarityFlag(polarityFlag)
			if err != nil {
				return err
			}

			rule := model.CategoryRule{
				Keyword:  strings.TrimSpace(args[0]),
				Category: strings.TrimSpace(args[1]),
				Polarity: polarity,
			}

			validator, err := newRuleValidator()
			if err != nil {
				return err
			}
			if err := validator.ValidateRule(rule); err != nil {
				return common.NewUserError(fmt.Sprintf("Invalid rule: %v", err), err)
			}
			for _, warning := range validator.Warnings(rule) {
				fmt.Println(cli.FormatWarning(warning))
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			if err := store.CreateRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rule #%d: %q → %s (%s)",
				rule.Position, rule.Keyword, rule.Category, rule.Polarity)))
			return nil
		},
	}

	cmd.Flags().String("polarity", string(model.PolarityAny), "apply to income, expense or any")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			if err := store.DeleteRule(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}
			fmt.Println(cli.FormatSuccess("Rule deleted"))
			return nil
		},
	}
}

func rulesMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move a rule to a new position (1 is checked first)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			position, err := strconv.Atoi(args[1])
			if err != nil || position < 1 {
				return common.NewUserError("Position must be a whole number starting at 1", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			if err := store.MoveRule(ctx, args[0], position); err != nil {
				return fmt.Errorf("failed to move rule: %w", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rule moved to position %d", position)))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <description>",
		Short: "Show which rule, if any, matches a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, _ := cmd.Flags().GetFloat64("amount")

			normalizer, err := loadNormalizer()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			rules, err := store.GetRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			normalized := normalizer.Normalize(strings.Join(args, " "))
			fmt.Println(cli.FormatInfo(fmt.Sprintf("Normalized: %q", normalized)))

			rule, ok := pattern.NewMatcher(rules, normalizer).Match(normalized, model.PolarityOf(amount))
			if !ok {
				fmt.Println(cli.FormatWarning("No rule matches"))
				return nil
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rule #%d %q → %s", rule.Position, rule.Keyword, rule.Category)))
			return nil
		},
	}

	cmd.Flags().Float64("amount", -1, "signed amount; negative for expenses")
	return cmd
}

func newRuleValidator() (*pattern.Validator, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	normalizer, err := loadNormalizer()
	if err != nil {
		return nil, err
	}
	return pattern.NewValidator(cat, normalizer), nil
}
