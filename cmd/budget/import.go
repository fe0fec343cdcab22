package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/common"
	"github.com/Veraticus/family-budget/internal/csvimport"
	"github.com/Veraticus/family-budget/internal/importer"
	"github.com/Veraticus/family-budget/internal/ofx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import and categorize bank statements",
		Long: `Import transactions from CSV or OFX/QFX bank statements.

Each transaction is matched against your keyword rules first. Anything the
rules miss is classified by the semantic model against the category catalog.
Transactions that were imported before are skipped.

CSV files must be header-less exports in the form:
  DD/MM/YYYY,amount,description[,balance]`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("format", "auto", "statement format (auto, csv, ofx)")
	cmd.Flags().String("account", "default", "account ID recorded on CSV transactions")
	cmd.Flags().Bool("no-model", false, "categorize with rules only")
	cmd.Flags().Duration("model-timeout", defaultModelTimeout, "how long to wait for the semantic model")

	_ = viper.BindPFlag("import.format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("import.account", cmd.Flags().Lookup("account"))
	_ = viper.BindPFlag("import.no_model", cmd.Flags().Lookup("no-model"))
	_ = viper.BindPFlag("import.model_timeout", cmd.Flags().Lookup("model-timeout"))

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	interruptHandler := cli.NewInterruptHandler(os.Stderr, "import", "Run the import again; transactions already saved are skipped.")
	ctx, stop := interruptHandler.HandleInterrupts(cmd.Context())
	defer stop()

	parsers := make([]importer.Parser, len(args))
	for i, path := range args {
		parser, err := parserFor(path, viper.GetString("import.format"), viper.GetString("import.account"))
		if err != nil {
			return err
		}
		parsers[i] = parser
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	setup, err := newClassifierSetup(ctx, !viper.GetBool("import.no_model"))
	if err != nil {
		return err
	}
	defer setup.Close()

	if !viper.GetBool("import.no_model") {
		setup.waitForModel(ctx, viper.GetDuration("import.model_timeout"))
	}

	imp := importer.New(store, setup.dispatcher, importer.WithProgress(os.Stderr))

	for i, path := range args {
		slog.Info(cli.FormatTitle(fmt.Sprintf("Importing %s", filepath.Base(path))))

		summary, err := importFile(ctx, imp, parsers[i], path)
		if err != nil {
			if interruptHandler.WasInterrupted() {
				return nil
			}
			return err
		}
		printImportSummary(path, summary)
	}

	return nil
}

func importFile(ctx context.Context, imp *importer.Importer, parser importer.Parser, path string) (*importer.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Could not open %s", path), err)
	}
	defer func() { _ = f.Close() }()

	return imp.Import(ctx, parser, f)
}

// parserFor picks a statement parser from the --format flag or the file extension.
func parserFor(path, format, accountID string) (importer.Parser, error) {
	if format == "" || format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = "csv"
		case ".ofx", ".qfx":
			format = "ofx"
		default:
			return nil, common.NewUserError(
				fmt.Sprintf("Cannot tell the format of %s; pass --format csv or --format ofx", path),
				common.ErrUnsupportedFormat)
		}
	}

	switch strings.ToLower(format) {
	case "csv":
		return csvimport.NewParser(accountID), nil
	case "ofx", "qfx":
		return ofx.NewParser(), nil
	default:
		return nil, common.NewUserError(fmt.Sprintf("Unknown format %q", format), common.ErrUnsupportedFormat)
	}
}

func printImportSummary(path string, s *importer.Summary) {
	content := fmt.Sprintf("  • Parsed: %d\n", s.Parsed) +
		fmt.Sprintf("  • Saved: %d\n", s.Saved) +
		fmt.Sprintf("  • Duplicates skipped: %d\n", s.Duplicates) +
		fmt.Sprintf("  • By rule: %d\n", s.ByRule) +
		fmt.Sprintf("  • By semantic model: %d\n", s.BySemantic) +
		fmt.Sprintf("  • Uncategorized: %d\n", s.Uncategorized) +
		fmt.Sprintf("  • Failed: %d\n", s.Failed) +
		fmt.Sprintf("  • Time taken: %s", s.Duration.Round(time.Millisecond))

	fmt.Println(cli.RenderBox(fmt.Sprintf("%s Imported %s", cli.BudgetIcon, filepath.Base(path)), content))

	if s.SemanticSkipped > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf(
			"%d transactions were categorized without the semantic model. Run 'budget recategorize' once it loads.",
			s.SemanticSkipped)))
	}
}
