// Package correction restates historical values to present value using an
// accumulated reference rate series.
package correction

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/shopspring/decimal"
)

// DaysPerMonth is the fixed month length used to count elapsed months.
const DaysPerMonth = 30

// Calculator computes monetary corrections against a rate series.
type Calculator struct {
	series service.RateSeries
}

// NewCalculator creates a calculator backed by the given series.
func NewCalculator(series service.RateSeries) *Calculator {
	return &Calculator{series: series}
}

// MonthsElapsed counts whole 30-day periods between two calendar dates.
func MonthsElapsed(referenceDate, asOf time.Time) int {
	days := int(model.DateOnly(asOf).Sub(model.DateOnly(referenceDate)).Hours() / 24)
	if days <= 0 {
		return 0
	}
	return days / DaysPerMonth
}

// Correct restates originalValue from referenceDate to asOf.
func (c *Calculator) Correct(ctx context.Context, originalValue decimal.Decimal, referenceDate, asOf time.Time) (*model.CorrectionResult, error) {
	if !originalValue.IsPositive() {
		return nil, fmt.Errorf("%w: original value %s must be positive", common.ErrInvalidNumericInput, originalValue)
	}
	if referenceDate.IsZero() || asOf.IsZero() {
		return nil, fmt.Errorf("%w: reference and comparison dates are required", common.ErrInvalidDateRange)
	}
	if !model.DateOnly(referenceDate).Before(model.DateOnly(asOf)) {
		return nil, fmt.Errorf("%w: reference date %s is not before %s",
			common.ErrInvalidDateRange, referenceDate.Format(time.DateOnly), asOf.Format(time.DateOnly))
	}

	months := MonthsElapsed(referenceDate, asOf)
	if months <= 0 {
		return nil, fmt.Errorf("%w: less than one month between %s and %s",
			common.ErrInvalidDateRange, referenceDate.Format(time.DateOnly), asOf.Format(time.DateOnly))
	}

	available := c.series.Months()
	if available <= 0 {
		return nil, common.ErrRateSeriesUnavailable
	}

	result := &model.CorrectionResult{
		OriginalValue: originalValue,
		ReferenceDate: referenceDate,
		AsOf:          asOf,
		MonthsElapsed: months,
		MonthsApplied: months,
	}

	if months > available {
		result.MonthsApplied = available
		result.Warnings = append(result.Warnings, model.Warning{
			Code: model.WarningPeriodClamped,
			Message: fmt.Sprintf("%d months elapsed but the rate series only covers %d; using %d",
				months, available, available),
		})
	}

	rate, err := c.series.AccumulatedRate(ctx, result.MonthsApplied)
	if err != nil {
		return nil, fmt.Errorf("failed to get accumulated rate for %d months: %w", result.MonthsApplied, err)
	}

	result.AccumulatedRatePercent = rate
	result.CorrectedValue = model.RoundMoney(originalValue.Mul(model.GrowthFactor(rate)))
	result.Difference = result.CorrectedValue.Sub(originalValue)

	return result, nil
}
