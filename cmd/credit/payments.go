package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/credit-engine/internal/cli"
	"github.com/Veraticus/credit-engine/internal/ingest"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/Veraticus/credit-engine/internal/taxid"
	"github.com/spf13/cobra"
)

func paymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Manage supplier payments",
	}

	cmd.AddCommand(paymentsImportCmd())
	cmd.AddCommand(paymentsListCmd())

	return cmd
}

func paymentsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import payments from a CSV or XLSX file",
		Long: `Import supplier payments from a spreadsheet export.

Columns are matched by header name (Portuguese and English names are both
understood). Rows that cannot be read are reported and skipped; payments
already in the database are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: runPaymentsImport,
	}

	cmd.Flags().String("sheet", "", "Worksheet to read from XLSX files (default: first sheet)")
	cmd.Flags().Bool("dry-run", false, "Parse and report without saving")

	return cmd
}

func runPaymentsImport(cmd *cobra.Command, args []string) error {
	sheet, _ := cmd.Flags().GetString("sheet")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out := cmd.OutOrStdout()

	parser := ingest.NewParser()
	parser.Sheet = sheet

	result, err := parser.ParseFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	for _, rowErr := range result.Errors {
		writeLine(out, cli.FormatWarning(rowErr.Error()))
	}

	if dryRun {
		writeLine(out, cli.FormatInfo(fmt.Sprintf("Read %d payments, %d rows rejected (dry run)",
			len(result.Payments), len(result.Errors))))
		return nil
	}

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		if err := store.SavePayments(ctx, result.Payments); err != nil {
			return fmt.Errorf("failed to save payments: %w", err)
		}

		slog.Info("Payments imported",
			"file", args[0],
			"payments", len(result.Payments),
			"rejected", len(result.Errors))

		writeLine(out, cli.FormatSuccess(fmt.Sprintf("Imported %d payments (%d rows rejected)",
			len(result.Payments), len(result.Errors))))
		return nil
	})
}

func paymentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored payments",
		RunE:  runPaymentsList,
	}

	cmd.Flags().String("from", "", "First payment date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last payment date (YYYY-MM-DD)")
	cmd.Flags().String("supplier", "", "Only payments to this supplier")
	cmd.Flags().Int("limit", 50, "Maximum number of payments to show (0 for all)")

	return cmd
}

func runPaymentsList(cmd *cobra.Command, _ []string) error {
	supplier, _ := cmd.Flags().GetString("supplier")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := service.PaymentFilter{SupplierID: supplier, Limit: limit}
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	if !from.IsZero() {
		filter.StartDate = &from
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}
	if !to.IsZero() {
		filter.EndDate = &to
	}

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		payments, err := store.GetPayments(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to get payments: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(payments) == 0 {
			writeLine(out, cli.InfoStyle.Render("No payments found. Use 'credit payments import' to add some."))
			return nil
		}

		rows := make([][]string, len(payments))
		for i, p := range payments {
			flags := ""
			if p.IsExemptSupplier {
				flags = "exempt"
			}
			rows[i] = []string{
				p.ID,
				formatDate(p.PaymentDate),
				p.SupplierID,
				taxid.Format(p.SupplierTaxID),
				string(p.Category),
				string(p.SupplierType),
				cli.FormatBRL(p.PaymentAmount),
				cli.FormatBRL(p.TaxableAmount),
				flags,
			}
		}

		writeLine(out, cli.FormatTitle("Payments"))
		writeLine(out, cli.RenderTable(
			[]string{"ID", "Date", "Supplier", "Tax ID", "Category", "Type", "Amount", "Taxable", ""},
			rows))
		return nil
	})
}
