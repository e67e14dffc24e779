package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/taxid"
	"github.com/xuri/excelize/v2"
)

// Canonical payment columns.
const (
	ColumnID            = "id"
	ColumnSupplierID    = "supplier_id"
	ColumnSupplierTaxID = "supplier_tax_id"
	ColumnPaymentDate   = "payment_date"
	ColumnCategory      = "category"
	ColumnSupplierType  = "supplier_type"
	ColumnPaymentAmount = "payment_amount"
	ColumnTaxableAmount = "taxable_amount"
	ColumnExempt        = "exempt"
)

var requiredColumns = []string{
	ColumnID, ColumnSupplierID, ColumnSupplierTaxID, ColumnPaymentDate,
	ColumnCategory, ColumnSupplierType, ColumnPaymentAmount,
}

// columnAliases maps normalized header spellings onto canonical columns.
var columnAliases = map[string]string{
	"payment_id":      ColumnID,
	"pagamento":       ColumnID,
	"supplier":        ColumnSupplierID,
	"fornecedor":      ColumnSupplierID,
	"cnpj":            ColumnSupplierTaxID,
	"cpf_cnpj":        ColumnSupplierTaxID,
	"tax_id":          ColumnSupplierTaxID,
	"date":            ColumnPaymentDate,
	"data":            ColumnPaymentDate,
	"data_pagamento":  ColumnPaymentDate,
	"categoria":       ColumnCategory,
	"service":         ColumnCategory,
	"tipo":            ColumnSupplierType,
	"tipo_fornecedor": ColumnSupplierType,
	"amount":          ColumnPaymentAmount,
	"valor":           ColumnPaymentAmount,
	"valor_pago":      ColumnPaymentAmount,
	"taxable":         ColumnTaxableAmount,
	"base_calculo":    ColumnTaxableAmount,
	"is_exempt":       ColumnExempt,
	"isento":          ColumnExempt,
	"exempt_supplier": ColumnExempt,
}

// RowError describes a row that could not be converted into a payment.
type RowError struct {
	Err error
	Row int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Result holds the payments read from a file and the rows that were rejected.
type Result struct {
	Payments []model.PaymentRecord
	Errors   []RowError
}

// Parser reads payment tables. A missing taxable amount defaults to the
// payment amount.
type Parser struct {
	Sheet string
}

// NewParser creates a parser that reads the first sheet of spreadsheets.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile picks the reader by file extension.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided on purpose
	if err != nil {
		return nil, fmt.Errorf("failed to open payments file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return p.ParseCSV(ctx, f)
	case ".xlsx", ".xlsm":
		return p.ParseXLSX(ctx, f)
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ParseCSV reads comma or semicolon separated payments with a header row.
func (p *Parser) ParseCSV(ctx context.Context, reader io.Reader) (*Result, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	text := stripBOM(string(content))
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	return p.parseRows(ctx, rows)
}

// ParseXLSX reads payments from a spreadsheet.
func (p *Parser) ParseXLSX(ctx context.Context, reader io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := p.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: spreadsheet has no sheets", common.ErrInvalidPayment)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return p.parseRows(ctx, rows)
}

func (p *Parser) parseRows(ctx context.Context, rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file is empty", common.ErrInvalidPayment)
	}

	columns, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isBlank(row) {
			continue
		}

		rowNum := i + 2
		payment, err := p.convertRow(row, columns)
		if err != nil {
			slog.Warn("Skipping payment row", "row", rowNum, "error", err)
			result.Errors = append(result.Errors, RowError{Row: rowNum, Err: err})
			continue
		}
		result.Payments = append(result.Payments, payment)
	}

	slog.Info("Parsed payments file",
		"payments", len(result.Payments),
		"rejected_rows", len(result.Errors))

	return result, nil
}

func (p *Parser) convertRow(row []string, columns map[string]int) (model.PaymentRecord, error) {
	get := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var (
		payment model.PaymentRecord
		err     error
		errs    []error
	)

	payment.ID = get(ColumnID)
	payment.SupplierID = get(ColumnSupplierID)
	payment.Category = model.ParseCategory(get(ColumnCategory))

	payment.SupplierTaxID = get(ColumnSupplierTaxID)
	if _, err = taxid.Validate(payment.SupplierTaxID); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", common.ErrInvalidPayment, err))
	} else {
		payment.SupplierTaxID = taxid.Format(payment.SupplierTaxID)
	}
	if payment.PaymentDate, err = ParseDate(get(ColumnPaymentDate)); err != nil {
		errs = append(errs, err)
	}
	if payment.SupplierType, err = model.ParseSupplierType(get(ColumnSupplierType)); err != nil {
		errs = append(errs, err)
	}
	if payment.PaymentAmount, err = ParseDecimal(get(ColumnPaymentAmount)); err != nil {
		errs = append(errs, err)
	}

	payment.TaxableAmount = payment.PaymentAmount
	if raw := get(ColumnTaxableAmount); raw != "" {
		if payment.TaxableAmount, err = ParseDecimal(raw); err != nil {
			errs = append(errs, err)
		}
	}
	if payment.IsExemptSupplier, err = ParseBool(get(ColumnExempt)); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return model.PaymentRecord{}, errors.Join(errs...)
	}
	if err := payment.Validate(); err != nil {
		return model.PaymentRecord{}, err
	}
	return payment, nil
}

func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, raw := range header {
		name := normalizeHeader(raw)
		if canonical, ok := columnAliases[name]; ok {
			name = canonical
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, common.NewUserError(
			"payments file is missing required columns: "+strings.Join(missing, ", "),
			common.ErrInvalidPayment)
	}
	return columns, nil
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(stripBOM(s)))
	s = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(s)
	return s
}

func detectDelimiter(text string) rune {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
