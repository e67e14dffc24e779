// Package export serializes analysis results for consumption outside the engine.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/engine"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
)

// Format names an export target.
type Format string

// Supported export formats. PDF is recognized but not produced.
const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatExcel  Format = "excel"
	FormatSheets Format = "sheets"
	FormatPDF    Format = "pdf"
)

// ParseFormat maps user input, including common file extensions, to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "sheets", "gsheets", "google-sheets":
		return FormatSheets, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, s)
	}
}

// Extension is the file extension for file-based formats, empty otherwise.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	case FormatExcel:
		return ".xlsx"
	case FormatPDF:
		return ".pdf"
	default:
		return ""
	}
}

// Report is the data handed to every exporter.
type Report struct {
	Summary       service.ReportSummary
	Opportunities []model.CreditOpportunity
	Skipped       []model.SkippedRecord
}

// NewReport builds a report over an arbitrary set of opportunities.
func NewReport(clientID, runID string, opps []model.CreditOpportunity, generatedAt time.Time) *Report {
	return &Report{
		Summary: service.ReportSummary{
			GeneratedAt: generatedAt,
			ClientID:    clientID,
			RunID:       runID,
			Totals:      model.Summarize(opps),
		},
		Opportunities: opps,
	}
}

// FromRun builds a report for a single analysis run.
func FromRun(run *model.AnalysisRun, generatedAt time.Time) *Report {
	report := NewReport(run.ClientID, run.ID, run.Opportunities, generatedAt)
	report.Skipped = run.Skipped
	return report
}

// Suppliers groups the report's opportunities by supplier.
func (r *Report) Suppliers() []engine.SupplierTotal {
	return engine.SupplierSummary(r.Opportunities)
}

// Exporter writes a report in one format.
type Exporter interface {
	Export(ctx context.Context, w io.Writer, report *Report) error
}

// Options carries collaborators needed by some formats.
type Options struct {
	// ReportWriter publishes the sheets format.
	ReportWriter service.ReportWriter
}

// New returns the exporter for format.
func New(format Format, opts Options) (Exporter, error) {
	switch format {
	case FormatCSV:
		return &CSVExporter{}, nil
	case FormatJSON:
		return &JSONExporter{Indent: "  "}, nil
	case FormatExcel:
		return &ExcelExporter{}, nil
	case FormatSheets:
		if opts.ReportWriter == nil {
			return nil, fmt.Errorf("%w: sheets export requires Google Sheets credentials", common.ErrMissingConfig)
		}
		return &SheetsExporter{writer: opts.ReportWriter}, nil
	case FormatPDF:
		return nil, common.NewUserError("PDF export is not available; use excel, csv or json", common.ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, format)
	}
}
