package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/credit-engine/internal/cli"
	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/export"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize credits by status and supplier",
		Long: `Summarize the credits of an analysis run. Totals are recomputed from the
current status of each opportunity, so reviews done after the run are reflected.

Without --run the most recent run is used; --all reports every stored opportunity.`,
		RunE: runReport,
	}

	addReportFlags(cmd)

	return cmd
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().String("run", "", "Analysis run to report on (default: latest)")
	cmd.Flags().Bool("all", false, "Report on every stored opportunity")
	cmd.Flags().String("client", "", "Client name for --all reports")
}

// loadReport resolves the report selected by the run, all and client flags.
func loadReport(ctx context.Context, cmd *cobra.Command, store service.Storage) (*export.Report, error) {
	runID, _ := cmd.Flags().GetString("run")
	all, _ := cmd.Flags().GetBool("all")
	now := time.Now()

	if all {
		client, _ := cmd.Flags().GetString("client")
		opps, err := store.ListOpportunities(ctx, service.OpportunityFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to list opportunities: %w", err)
		}
		return export.NewReport(client, "", opps, now), nil
	}

	if runID == "" {
		runs, err := store.ListAnalysisRuns(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to list analysis runs: %w", err)
		}
		if len(runs) == 0 {
			return nil, common.NewUserError("no analysis runs yet; run 'credit analyze' first", common.ErrNotFound)
		}
		runID = runs[0].ID
	}

	run, err := store.GetAnalysisRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return export.FromRun(run, now), nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		report, err := loadReport(ctx, cmd, store)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		totals := report.Summary.Totals

		title := cli.ChartIcon + " Credit Report"
		if report.Summary.RunID != "" {
			title += " for run " + report.Summary.RunID
		}
		writeLine(out, cli.FormatTitle(title))

		statusRows := make([][]string, 0, len(model.AllStatuses))
		for _, status := range model.AllStatuses {
			amount, ok := totals.ByStatus[status]
			if !ok {
				continue
			}
			statusRows = append(statusRows, []string{string(status), cli.FormatBRL(amount)})
		}
		writeLine(out, cli.RenderTable([]string{"Status", "Total credit"}, statusRows))
		writeLine(out)

		suppliers := report.Suppliers()
		supplierRows := make([][]string, len(suppliers))
		for i, s := range suppliers {
			supplierRows[i] = []string{
				s.SupplierID,
				strconv.Itoa(s.Count),
				cli.FormatBRL(s.RetentionAmount),
				cli.FormatBRL(s.CorrectionAmount),
				cli.FormatBRL(s.Identified),
				cli.FormatBRL(s.Approved),
				cli.FormatBRL(s.Total()),
			}
		}
		writeLine(out, cli.RenderTable(
			[]string{"Supplier", "Count", "Retention", "Correction", "Identified", "Approved", "Total"},
			supplierRows))

		content := fmt.Sprintf("Opportunities: %d\n", totals.Count) +
			fmt.Sprintf("Identified:    %s\n", cli.FormatMoney(totals.Identified)) +
			fmt.Sprintf("Approved:      %s", cli.FormatMoney(totals.Approved))
		if n := len(report.Skipped); n > 0 {
			content += fmt.Sprintf("\nSkipped:       %d payments", n)
		}
		writeLine(out, cli.RenderBox("Totals", content))
		return nil
	})
}
