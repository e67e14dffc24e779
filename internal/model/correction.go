package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WarningCode classifies non-fatal conditions surfaced alongside results.
type WarningCode string

// Warning codes.
const (
	WarningPeriodClamped WarningCode = "period_clamped"
	WarningNeedsReview   WarningCode = "needs_review"
)

// Warning is informational and never blocks processing.
type Warning struct {
	Code      WarningCode `json:"code"`
	Message   string      `json:"message"`
	PaymentID string      `json:"payment_id,omitempty"`
}

// CorrectionResult is the output of a single monetary correction.
type CorrectionResult struct {
	ReferenceDate          time.Time       `json:"reference_date"`
	AsOf                   time.Time       `json:"as_of"`
	Warnings               []Warning       `json:"warnings,omitempty"`
	OriginalValue          decimal.Decimal `json:"original_value"`
	AccumulatedRatePercent decimal.Decimal `json:"accumulated_rate_percent"`
	CorrectedValue         decimal.Decimal `json:"corrected_value"`
	Difference             decimal.Decimal `json:"difference"`
	MonthsElapsed          int             `json:"months_elapsed"`
	MonthsApplied          int             `json:"months_applied"`
}

// Clamped reports whether the rate period was shortened to the available series.
func (r *CorrectionResult) Clamped() bool {
	for _, w := range r.Warnings {
		if w.Code == WarningPeriodClamped {
			return true
		}
	}
	return false
}
