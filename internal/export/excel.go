package export

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the Excel workbook.
const (
	SheetSummary       = "Summary"
	SheetSuppliers     = "Suppliers"
	SheetOpportunities = "Opportunities"
	SheetSkipped       = "Skipped"
)

const brlFormat = `"R$" #,##0.00`

// ExcelExporter writes an .xlsx workbook with summary, supplier and detail sheets.
type ExcelExporter struct{}

type excelStyles struct {
	header   int
	currency int
}

// Export implements Exporter.
func (e *ExcelExporter) Export(ctx context.Context, w io.Writer, report *Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	styles, err := newExcelStyles(f)
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename default sheet: %w", err)
	}
	if err := writeSummarySheet(f, report, styles); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSuppliers); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", SheetSuppliers, err)
	}
	if err := writeSupplierSheet(f, report, styles); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetOpportunities); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", SheetOpportunities, err)
	}
	if err := writeOpportunitySheet(ctx, f, report, styles); err != nil {
		return err
	}

	if len(report.Skipped) > 0 {
		if _, err := f.NewSheet(SheetSkipped); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", SheetSkipped, err)
		}
		if err := writeSkippedSheet(f, report, styles); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func newExcelStyles(f *excelize.File) (excelStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return excelStyles{}, fmt.Errorf("failed to create header style: %w", err)
	}

	format := brlFormat
	currency, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return excelStyles{}, fmt.Errorf("failed to create currency style: %w", err)
	}

	return excelStyles{header: header, currency: currency}, nil
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// writeRow writes values starting at column A of row and styles the money columns.
func writeRow(f *excelize.File, sheet string, row int, values []any, moneyCols map[int]bool, styles excelStyles) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
		}
		if moneyCols[i] {
			if err := f.SetCellStyle(sheet, cell, cell, styles.currency); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, styles excelStyles) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := writeRow(f, sheet, 1, values, nil, styles); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, styles.header)
}

func writeSummarySheet(f *excelize.File, report *Report, styles excelStyles) error {
	summary := report.Summary
	if err := writeHeader(f, SheetSummary, []string{"Tax Credit Report", summary.GeneratedAt.Format("2006-01-02 15:04")}, styles); err != nil {
		return err
	}

	money := map[int]bool{1: true}
	rows := [][]any{
		{"Client", summary.ClientID},
		{"Run", summary.RunID},
		{"Opportunities", summary.Totals.Count},
		{"Skipped", len(report.Skipped)},
	}
	for i, values := range rows {
		if err := writeRow(f, SheetSummary, i+2, values, nil, styles); err != nil {
			return err
		}
	}

	row := len(rows) + 2
	if err := writeRow(f, SheetSummary, row, []any{"Identified", amount(summary.Totals.Identified)}, money, styles); err != nil {
		return err
	}
	row++
	if err := writeRow(f, SheetSummary, row, []any{"Approved", amount(summary.Totals.Approved)}, money, styles); err != nil {
		return err
	}

	for _, status := range model.AllStatuses {
		total, ok := summary.Totals.ByStatus[status]
		if !ok {
			continue
		}
		row++
		if err := writeRow(f, SheetSummary, row, []any{string(status), amount(total)}, money, styles); err != nil {
			return err
		}
	}

	return f.SetColWidth(SheetSummary, "A", "B", 22)
}

func writeSupplierSheet(f *excelize.File, report *Report, styles excelStyles) error {
	headers := []string{"Supplier", "Count", "Retention", "Correction", "Identified", "Approved", "Total Credit"}
	if err := writeHeader(f, SheetSuppliers, headers, styles); err != nil {
		return err
	}

	money := map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true}
	for i, s := range report.Suppliers() {
		values := []any{
			s.SupplierID,
			s.Count,
			amount(s.RetentionAmount),
			amount(s.CorrectionAmount),
			amount(s.Identified),
			amount(s.Approved),
			amount(s.Total()),
		}
		if err := writeRow(f, SheetSuppliers, i+2, values, money, styles); err != nil {
			return err
		}
	}

	return f.SetColWidth(SheetSuppliers, "A", "G", 16)
}

func writeOpportunitySheet(ctx context.Context, f *excelize.File, report *Report, styles excelStyles) error {
	headers := []string{
		"ID", "Payment", "Supplier", "Rule", "Rate (%)", "Retention", "Correction",
		"Total Credit", "Status", "Confidence", "Identified On", "Rejection Reason",
	}
	if err := writeHeader(f, SheetOpportunities, headers, styles); err != nil {
		return err
	}

	money := map[int]bool{5: true, 6: true, 7: true}
	for i := range report.Opportunities {
		if err := ctx.Err(); err != nil {
			return err
		}
		opp := &report.Opportunities[i]
		values := []any{
			opp.ID,
			opp.PaymentID,
			opp.SupplierID,
			opp.ApplicableRule,
			opp.RetentionRate.InexactFloat64(),
			amount(opp.RetentionAmount),
			amount(opp.CorrectionAmount),
			amount(opp.TotalCredit()),
			string(opp.Status),
			opp.Confidence,
			opp.IdentificationDate.Format("2006-01-02"),
			opp.RejectionReason,
		}
		if err := writeRow(f, SheetOpportunities, i+2, values, money, styles); err != nil {
			return err
		}
	}

	return f.SetColWidth(SheetOpportunities, "A", "L", 16)
}

func writeSkippedSheet(f *excelize.File, report *Report, styles excelStyles) error {
	if err := writeHeader(f, SheetSkipped, []string{"Payment", "Code", "Reason"}, styles); err != nil {
		return err
	}

	for i, s := range report.Skipped {
		if err := writeRow(f, SheetSkipped, i+2, []any{s.PaymentID, string(s.Code), s.Reason}, nil, styles); err != nil {
			return err
		}
	}
	return nil
}
