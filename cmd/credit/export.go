package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Veraticus/credit-engine/internal/cli"
	"github.com/Veraticus/credit-engine/internal/config"
	"github.com/Veraticus/credit-engine/internal/export"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/Veraticus/credit-engine/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a credit report",
		Long: `Export the opportunities of an analysis run.

Formats:
  csv     one row per opportunity
  json    totals, suppliers and opportunities
  excel   workbook with summary, supplier and opportunity sheets
  sheets  publish to Google Sheets (needs sheets.* configuration)`,
		Example: `  credit export --format excel --output credits.xlsx
  credit export --format csv --run 3f2a... > credits.csv
  credit export --format sheets`,
		RunE: runExport,
	}

	addReportFlags(cmd)
	cmd.Flags().StringP("format", "f", "csv", "Output format (csv, json, excel, sheets)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout; required for excel)")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	rawFormat, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return err
	}
	if format == export.FormatExcel && output == "" {
		return fmt.Errorf("excel export needs --output (for example credits%s)", format.Extension())
	}

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		report, err := loadReport(ctx, cmd, store)
		if err != nil {
			return err
		}

		var opts export.Options
		if format == export.FormatSheets {
			writer, err := newSheetsWriter(ctx)
			if err != nil {
				return err
			}
			opts.ReportWriter = writer
		}

		exporter, err := export.New(format, opts)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" && format != export.FormatSheets {
			f, err := os.Create(config.ExpandPath(output)) //nolint:gosec // path is user-provided on purpose
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil {
					slog.Error("failed to close output file", "error", closeErr)
				}
			}()
			w = f
		}

		if err := exporter.Export(ctx, w, report); err != nil {
			return err
		}

		slog.Info("Report exported",
			"format", format,
			"run_id", report.Summary.RunID,
			"opportunities", len(report.Opportunities))

		if output != "" && format != export.FormatSheets {
			writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d opportunities to %s",
				len(report.Opportunities), output)))
		}
		return nil
	})
}

func newSheetsWriter(ctx context.Context) (service.ReportWriter, error) {
	cfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load sheets config: %w", err)
	}
	return sheets.NewWriter(ctx, *cfg, slog.Default())
}
