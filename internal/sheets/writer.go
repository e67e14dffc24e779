package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/engine"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const reportSheetTitle = "Credits"

// detailHeaders are the columns of the per-opportunity section.
var detailHeaders = []any{
	"Payment",
	"Supplier",
	"Rule",
	"Rate (%)",
	"Retention",
	"Correction",
	"Total Credit",
	"Status",
	"Confidence",
	"Identified On",
	"Rejection Reason",
}

// Writer implements the ReportWriter interface for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

var _ service.ReportWriter = (*Writer)(nil)

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: srv,
		logger:  logger,
	}, nil
}

// Write implements the ReportWriter interface.
func (w *Writer) Write(ctx context.Context, opps []model.CreditOpportunity, summary *service.ReportSummary) error {
	if summary == nil {
		return fmt.Errorf("%w: report summary", common.ErrMissingConfig)
	}

	w.logger.Info("starting report generation",
		"opportunities", len(opps),
		"run_id", summary.RunID,
		"client_id", summary.ClientID)

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	if clearErr := w.clearSheet(ctx, spreadsheetID); clearErr != nil {
		return fmt.Errorf("failed to clear sheet: %w", clearErr)
	}

	layout := prepareReportData(opps, summary, w.location())

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, layout.Values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, layout)
		}, retryOpts)
		if err != nil {
			// The data is already written; formatting is cosmetic.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("report generation completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(layout.Values))

	return nil
}

func (w *Writer) location() *time.Location {
	if w.config.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.config.TimeZone)
	if err != nil {
		w.logger.Warn("unknown time zone, using UTC", "time_zone", w.config.TimeZone)
		return time.UTC
	}
	return loc
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet gets an existing spreadsheet or creates a new one.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
			Locale:   "pt_BR",
		},
		Sheets: []*sheets.Sheet{
			{
				Properties: &sheets.SheetProperties{
					Title: reportSheetTitle,
				},
			},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created.SpreadsheetId, nil
}

// clearSheet clears all data from the sheet.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, "A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// money converts to a JSON number so the sheet locale cannot misread separators.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// prepareReportData lays out the summary, supplier breakdown and opportunity details.
// Opportunities keep their input order.
func prepareReportData(opps []model.CreditOpportunity, summary *service.ReportSummary, loc *time.Location) reportLayout {
	var layout reportLayout

	generated := summary.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	layout.add(
		[]any{"Tax Credit Report", generated.In(loc).Format("02/01/2006 15:04")},
		[]any{"Client", summary.ClientID},
		[]any{"Run", summary.RunID},
		[]any{},
	)

	layout.heading("Summary")
	start := layout.add(
		[]any{"Identified", money(summary.Totals.Identified)},
		[]any{"Approved", money(summary.Totals.Approved)},
	)
	for _, status := range model.AllStatuses {
		amount, ok := summary.Totals.ByStatus[status]
		if !ok {
			continue
		}
		layout.add([]any{string(status), money(amount)})
	}
	layout.currency(start, len(layout.Values), 1, 2)
	layout.add([]any{"Opportunities", summary.Totals.Count}, []any{})

	layout.heading("Suppliers")
	layout.add([]any{"Supplier", "Count", "Retention", "Correction", "Identified", "Approved", "Total Credit"})
	start = len(layout.Values)
	for _, supplier := range engine.SupplierSummary(opps) {
		layout.add([]any{
			supplier.SupplierID,
			supplier.Count,
			money(supplier.RetentionAmount),
			money(supplier.CorrectionAmount),
			money(supplier.Identified),
			money(supplier.Approved),
			money(supplier.Total()),
		})
	}
	layout.currency(start, len(layout.Values), 2, 7)
	layout.add([]any{})

	layout.heading("Opportunities")
	layout.DetailsRow = layout.add(detailHeaders)
	start = len(layout.Values)
	for i := range opps {
		opp := &opps[i]
		layout.add([]any{
			opp.PaymentID,
			opp.SupplierID,
			opp.ApplicableRule,
			opp.RetentionRate.StringFixed(2),
			money(opp.RetentionAmount),
			money(opp.CorrectionAmount),
			money(opp.TotalCredit()),
			string(opp.Status),
			opp.Confidence,
			opp.IdentificationDate.In(loc).Format("2006-01-02"),
			opp.RejectionReason,
		})
	}
	layout.currency(start, len(layout.Values), 4, 7)

	return layout
}

// writeData writes the data to the spreadsheet.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		batch := values[i:end]
		valueRange := &sheets.ValueRange{
			Values: batch,
		}

		rangeStr := fmt.Sprintf("A%d", i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}

	return nil
}

func boldRow(row int, endCol int64) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          0,
				StartRowIndex:    int64(row),
				EndRowIndex:      int64(row + 1),
				StartColumnIndex: 0,
				EndColumnIndex:   endCol,
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					TextFormat: &sheets.TextFormat{Bold: true},
				},
			},
			Fields: "userEnteredFormat.textFormat",
		},
	}
}

// formattingRequests builds the batch update for a prepared layout.
func (w *Writer) formattingRequests(layout reportLayout) []*sheets.Request {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold:     true,
							FontSize: 16,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
	}

	for _, row := range layout.Headings {
		requests = append(requests, boldRow(row, 1))
	}
	requests = append(requests, boldRow(layout.DetailsRow, int64(len(detailHeaders))))

	for _, r := range layout.Currency {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          0,
					StartRowIndex:    int64(r.StartRow),
					EndRowIndex:      int64(r.EndRow),
					StartColumnIndex: int64(r.StartCol),
					EndColumnIndex:   int64(r.EndCol),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "CURRENCY",
							Pattern: w.config.CurrencyPattern,
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}

	requests = append(requests, &sheets.Request{
		AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{
				SheetId:    0,
				Dimension:  "COLUMNS",
				StartIndex: 0,
				EndIndex:   int64(len(detailHeaders)),
			},
		},
	})

	return requests
}

// applyFormatting applies formatting to the spreadsheet.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, layout reportLayout) error {
	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: w.formattingRequests(layout),
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}
