package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
)

// ParseRatesCSV reads a two-column table of month and monthly rate percent.
// A header row is skipped when its rate cell is not numeric.
func ParseRatesCSV(ctx context.Context, reader io.Reader, source string) ([]model.MonthlyRate, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file: %w", err)
	}

	text := stripBOM(string(content))
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse rates file: %w", err)
	}

	var rates []model.MonthlyRate
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isBlank(row) {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: row %d: expected month and rate", common.ErrInvalidNumericInput, i+1)
		}

		rate, rateErr := ParseDecimal(row[1])
		if rateErr != nil && i == 0 {
			continue
		}
		if rateErr != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, rateErr)
		}

		month, err := ParseDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		rates = append(rates, model.MonthlyRate{
			Month:       model.MonthStart(month),
			RatePercent: rate,
			Source:      source,
		})
	}

	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: no rates in file", common.ErrRateSeriesUnavailable)
	}
	return rates, nil
}
