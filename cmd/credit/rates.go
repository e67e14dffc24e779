package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/credit-engine/internal/cli"
	"github.com/Veraticus/credit-engine/internal/ingest"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/rates"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/spf13/cobra"
)

func ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Manage the Selic reference rate series",
	}

	cmd.AddCommand(ratesImportCmd())
	cmd.AddCommand(ratesFetchCmd())
	cmd.AddCommand(ratesShowCmd())

	return cmd
}

func ratesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <rates.csv>",
		Short: "Import monthly rates from a CSV file",
		Long: `Import a two-column table of month and monthly rate percent, for example:

  mes;taxa
  01/2024;0,97
  02/2024;0,80

Months already stored are overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: runRatesImport,
	}

	cmd.Flags().String("source", "manual", "Source label stored with each rate")

	return cmd
}

func runRatesImport(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")

	f, err := os.Open(args[0]) //nolint:gosec // path is user-provided on purpose
	if err != nil {
		return fmt.Errorf("failed to open rates file: %w", err)
	}
	defer func() { _ = f.Close() }()

	monthly, err := ingest.ParseRatesCSV(cmd.Context(), f, source)
	if err != nil {
		return err
	}

	return saveRates(cmd, monthly)
}

func ratesFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download monthly Selic rates from the central bank",
		Long: `Download the monthly Selic series from the central bank time-series API
and store it. By default the last five years up to the current month are fetched.`,
		RunE: runRatesFetch,
	}

	cmd.Flags().String("from", "", "First month to fetch (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last month to fetch (YYYY-MM-DD)")

	return cmd
}

func runRatesFetch(cmd *cobra.Command, _ []string) error {
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	if from.IsZero() {
		from = model.MonthStart(to).AddDate(-5, 0, 0)
	}

	client := rates.NewBCBClient(appConfig.Rates.BCB)
	monthly, err := client.FetchMonthlyRates(cmd.Context(), from, to)
	if err != nil {
		return err
	}

	return saveRates(cmd, monthly)
}

func saveRates(cmd *cobra.Command, monthly []model.MonthlyRate) error {
	if len(monthly) == 0 {
		writeLine(cmd.OutOrStdout(), cli.FormatWarning("No rates found"))
		return nil
	}

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		if err := store.SaveMonthlyRates(ctx, monthly); err != nil {
			return fmt.Errorf("failed to save rates: %w", err)
		}

		slog.Info("Reference rates stored", "months", len(monthly))
		writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Stored %d monthly rates", len(monthly))))
		return nil
	})
}

func ratesShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored series with accumulated rates",
		RunE:  runRatesShow,
	}

	cmd.Flags().Int("months", 12, "Number of most recent months to show (0 for all)")

	return cmd
}

func runRatesShow(cmd *cobra.Command, _ []string) error {
	months, _ := cmd.Flags().GetInt("months")

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		series, err := rates.Load(ctx, store, appConfig.Rates.Method)
		if err != nil {
			return err
		}

		monthly := series.Rates()
		if months > 0 && months < len(monthly) {
			monthly = monthly[:months]
		}

		rows := make([][]string, len(monthly))
		for i, r := range monthly {
			accumulated, err := series.AccumulatedRate(ctx, i+1)
			if err != nil {
				return err
			}
			rows[i] = []string{
				r.Month.Format("2006-01"),
				r.RatePercent.String() + "%",
				accumulated.StringFixed(4) + "%",
				r.Source,
			}
		}

		out := cmd.OutOrStdout()
		writeLine(out, cli.FormatTitle(fmt.Sprintf("Reference Rates (%s accumulation, %d months stored)",
			series.Method(), series.Months())))
		writeLine(out, cli.RenderTable([]string{"Month", "Rate", "Accumulated", "Source"}, rows))
		return nil
	})
}
