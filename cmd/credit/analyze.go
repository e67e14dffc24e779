package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/credit-engine/internal/cli"
	"github.com/Veraticus/credit-engine/internal/engine"
	"github.com/Veraticus/credit-engine/internal/ingest"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Scan stored payments for recoverable tax credits",
		Long: `Run an analysis over the stored payments.

Each payment inside the window is matched against the retention rules. When
a retention was required, a credit opportunity is created and, unless
disabled, the retained amount is restated with the accumulated Selic rate.

Press Ctrl+C to stop early: payments processed so far are kept as a
cancelled run.`,
		Example: `  credit analyze --from 2020-01-01 --to 2024-12-31 --client acme
  credit analyze --supplier S001 --no-correction`,
		RunE: runAnalyze,
	}

	cmd.Flags().String("from", "", "First payment date in the window")
	cmd.Flags().String("to", "", "Last payment date in the window")
	cmd.Flags().String("as-of", "", "Date to restate values to (default: today)")
	cmd.Flags().String("client", "", "Client the analysis is for")
	cmd.Flags().String("supplier", "", "Only analyze payments to this supplier")
	cmd.Flags().String("minimum", "", "Minimum total credit to keep an opportunity (default from analysis.minimum_credit)")
	cmd.Flags().Bool("no-correction", false, "Skip monetary correction")
	cmd.Flags().Bool("quiet", false, "Do not draw a progress bar")

	return cmd
}

func analysisOptions(cmd *cobra.Command) (engine.RunOptions, error) {
	opts := engine.RunOptions{
		MinimumCreditValue: appConfig.Analysis.MinimumCredit,
		ApplyCorrection:    appConfig.Analysis.ApplyCorrection,
	}

	var err error
	if opts.WindowStart, err = dateFlag(cmd, "from"); err != nil {
		return opts, err
	}
	if opts.WindowEnd, err = dateFlag(cmd, "to"); err != nil {
		return opts, err
	}
	if opts.AsOf, err = dateFlag(cmd, "as-of"); err != nil {
		return opts, err
	}

	opts.ClientID, _ = cmd.Flags().GetString("client")
	opts.SupplierID, _ = cmd.Flags().GetString("supplier")

	if minimum, _ := cmd.Flags().GetString("minimum"); minimum != "" {
		if opts.MinimumCreditValue, err = ingest.ParseDecimal(minimum); err != nil {
			return opts, fmt.Errorf("invalid --minimum: %w", err)
		}
	}
	if noCorrection, _ := cmd.Flags().GetBool("no-correction"); noCorrection {
		opts.ApplyCorrection = false
	}

	return opts, nil
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	opts, err := analysisOptions(cmd)
	if err != nil {
		return err
	}
	quiet, _ := cmd.Flags().GetBool("quiet")
	out := cmd.OutOrStdout()

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		handler := cli.NewInterruptHandler(out)
		ctx = handler.HandleInterrupts(ctx, "Analysis", true)

		var progress engine.ProgressFunc
		if !quiet {
			bar := cli.NewRunProgress(cmd.ErrOrStderr(), "Analyzing payments")
			defer bar.Close()
			progress = bar.Func()
		}

		run, err := newRunner(store).Analyze(ctx, opts, progress)
		if err != nil {
			return err
		}

		printRunSummary(out, run)
		return nil
	})
}

func printRunSummary(out io.Writer, run *model.AnalysisRun) {
	status := cli.StyleSuccess(string(run.Status))
	if run.Status == model.RunCancelled {
		status = cli.StyleWarning(string(run.Status))
	}

	content := fmt.Sprintf("Run:              %s (%s)\n", run.ID, status) +
		fmt.Sprintf("Window:           %s to %s\n", formatDate(run.WindowStart), formatDate(run.WindowEnd)) +
		fmt.Sprintf("Processed:        %d of %d payments\n", run.Processed, run.Total) +
		fmt.Sprintf("Opportunities:    %d\n", len(run.Opportunities)) +
		fmt.Sprintf("Not applicable:   %d\n", run.NotApplicable) +
		fmt.Sprintf("Outside window:   %d\n", run.OutsideWindow) +
		fmt.Sprintf("Below minimum:    %d\n", run.BelowThreshold) +
		fmt.Sprintf("Skipped:          %d\n", len(run.Skipped)) +
		fmt.Sprintf("Identified total: %s\n", cli.FormatMoney(run.TotalsIdentified)) +
		fmt.Sprintf("Approved total:   %s", cli.FormatBRL(run.TotalsApproved))

	writeLine(out, cli.RenderBox(cli.MoneyIcon+" Analysis Complete", content))

	for _, s := range run.Skipped {
		writeLine(out, cli.FormatWarning(fmt.Sprintf("Skipped payment %s: %s", s.PaymentID, s.Reason)))
	}
	const maxWarnings = 10
	for i, w := range run.Warnings {
		if i == maxWarnings {
			writeLine(out, cli.FormatInfo(fmt.Sprintf("... and %d more warnings", len(run.Warnings)-maxWarnings)))
			break
		}
		writeLine(out, cli.FormatInfo(fmt.Sprintf("%s: %s", w.PaymentID, w.Message)))
	}
}
