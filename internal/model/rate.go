package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyRate is one published monthly reference rate.
type MonthlyRate struct {
	Month       time.Time       `json:"month"`
	Source      string          `json:"source"`
	RatePercent decimal.Decimal `json:"rate_percent"`
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DateOnly truncates t to midnight UTC of the same calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
