package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/credit-engine/internal/cli"
	"github.com/Veraticus/credit-engine/internal/ingest"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/spf13/cobra"
)

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <value>",
		Short: "Restate a value with the accumulated Selic rate",
		Long: `Apply monetary correction to a single value using the stored reference rates.

The number of whole 30-day months between the reference date and the
comparison date selects how many of the most recent monthly rates are
accumulated. When the series is shorter than that period the available
months are used and a warning is printed.`,
		Example: `  credit correct 1000 --date 2023-01-15
  credit correct "1.234,56" --date 15/01/2023 --as-of 2024-06-30`,
		Args: cobra.ExactArgs(1),
		RunE: runCorrect,
	}

	cmd.Flags().String("date", "", "Reference date of the value (required)")
	cmd.Flags().String("as-of", "", "Comparison date (default: today)")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func runCorrect(cmd *cobra.Command, args []string) error {
	value, err := ingest.ParseDecimal(args[0])
	if err != nil {
		return err
	}
	reference, err := dateFlag(cmd, "date")
	if err != nil {
		return err
	}
	asOf, err := dateFlag(cmd, "as-of")
	if err != nil {
		return err
	}

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		result, err := newRunner(store).Correct(ctx, value, reference, asOf)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, w := range result.Warnings {
			writeLine(out, cli.FormatWarning(w.Message))
		}

		content := fmt.Sprintf("Original value:   %s\n", cli.FormatBRL(result.OriginalValue)) +
			fmt.Sprintf("Period:           %s to %s\n", formatDate(result.ReferenceDate), formatDate(result.AsOf)) +
			fmt.Sprintf("Months elapsed:   %d (applied %d)\n", result.MonthsElapsed, result.MonthsApplied) +
			fmt.Sprintf("Accumulated rate: %s%%\n", result.AccumulatedRatePercent.StringFixed(4)) +
			fmt.Sprintf("Corrected value:  %s\n", cli.FormatMoney(result.CorrectedValue)) +
			fmt.Sprintf("Difference:       %s", cli.FormatBRL(result.Difference))

		writeLine(out, cli.RenderBox(cli.ChartIcon+" Monetary Correction", content))
		return nil
	})
}
