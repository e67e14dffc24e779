// Package ingest reads payments, retention rules and rate tables from files.
package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01",
	"01/2006",
}

// ParseDecimal accepts both "1234.56" and Brazilian "1.234,56" notation.
// A lone comma is a decimal separator; dots are thousands separators only
// when a comma is also present or when more than one dot appears.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", common.ErrInvalidNumericInput)
	}

	switch {
	case strings.Contains(s, ","):
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", common.ErrInvalidNumericInput, raw)
	}
	return d, nil
}

// ParseDate accepts ISO and dd/mm/yyyy dates as well as spreadsheet serial numbers.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", common.ErrInvalidDateRange)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", common.ErrInvalidDateRange, raw)
}

// ParseBool understands English and Portuguese yes/no spellings.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false", "no", "n", "nao", "não", "f":
		return false, nil
	case "1", "true", "yes", "y", "sim", "s", "t", "x":
		return true, nil
	default:
		return false, fmt.Errorf("%w: unrecognized boolean %q", common.ErrInvalidPayment, raw)
	}
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
