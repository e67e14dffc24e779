package correction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatSeries accrues the same monthly rate over a fixed number of months.
type flatSeries struct {
	err     error
	monthly decimal.Decimal
	months  int
	fixed   *decimal.Decimal
}

func (s *flatSeries) MonthlyRate(_ context.Context, _ int) (decimal.Decimal, error) {
	return s.monthly, s.err
}

func (s *flatSeries) AccumulatedRate(_ context.Context, monthsBack int) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	if s.fixed != nil {
		return *s.fixed, nil
	}
	return s.monthly.Mul(decimal.NewFromInt(int64(monthsBack))), nil
}

func (s *flatSeries) Months() int { return s.months }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculator_Correct_ReferenceScenario(t *testing.T) {
	ten := decimal.RequireFromString("10.00")
	calc := NewCalculator(&flatSeries{fixed: &ten, months: 120})

	result, err := calc.Correct(context.Background(), decimal.RequireFromString("1000.00"),
		date(2021, 1, 1), date(2023, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, 24, result.MonthsElapsed)
	assert.Equal(t, "1100.00", result.CorrectedValue.StringFixed(2))
	assert.Equal(t, "100.00", result.Difference.StringFixed(2))
	assert.False(t, result.Clamped())
}

func TestCalculator_Correct_Errors(t *testing.T) {
	calc := NewCalculator(&flatSeries{monthly: decimal.NewFromInt(1), months: 60})
	ctx := context.Background()

	tests := []struct {
		value   decimal.Decimal
		ref     time.Time
		asOf    time.Time
		wantErr error
		name    string
	}{
		{name: "zero value", value: decimal.Zero, ref: date(2020, 1, 1), asOf: date(2021, 1, 1), wantErr: common.ErrInvalidNumericInput},
		{name: "negative value", value: decimal.NewFromInt(-5), ref: date(2020, 1, 1), asOf: date(2021, 1, 1), wantErr: common.ErrInvalidNumericInput},
		{name: "same day", value: decimal.NewFromInt(5), ref: date(2021, 1, 1), asOf: date(2021, 1, 1), wantErr: common.ErrInvalidDateRange},
		{name: "reversed", value: decimal.NewFromInt(5), ref: date(2022, 1, 1), asOf: date(2021, 1, 1), wantErr: common.ErrInvalidDateRange},
		{name: "under one month", value: decimal.NewFromInt(5), ref: date(2021, 1, 1), asOf: date(2021, 1, 30), wantErr: common.ErrInvalidDateRange},
		{name: "zero dates", value: decimal.NewFromInt(5), wantErr: common.ErrInvalidDateRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Correct(ctx, tt.value, tt.ref, tt.asOf)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCalculator_Correct_ClampsLongPeriods(t *testing.T) {
	calc := NewCalculator(&flatSeries{monthly: decimal.RequireFromString("0.5"), months: 12})

	result, err := calc.Correct(context.Background(), decimal.NewFromInt(200), date(2020, 1, 1), date(2023, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, 36, result.MonthsElapsed)
	assert.Equal(t, 12, result.MonthsApplied)
	assert.True(t, result.Clamped())
	assert.True(t, result.AccumulatedRatePercent.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, "212.00", result.CorrectedValue.StringFixed(2))
}

func TestCalculator_Correct_SeriesFailures(t *testing.T) {
	empty := NewCalculator(&flatSeries{months: 0})
	_, err := empty.Correct(context.Background(), decimal.NewFromInt(10), date(2020, 1, 1), date(2021, 1, 1))
	assert.ErrorIs(t, err, common.ErrRateSeriesUnavailable)

	boom := errors.New("lookup failed")
	broken := NewCalculator(&flatSeries{months: 24, err: boom})
	_, err = broken.Correct(context.Background(), decimal.NewFromInt(10), date(2020, 1, 1), date(2021, 1, 1))
	assert.ErrorIs(t, err, boom)
}

func TestCalculator_Correct_RoundingLaw(t *testing.T) {
	rate := decimal.RequireFromString("3.3333")
	calc := NewCalculator(&flatSeries{fixed: &rate, months: 120})

	values := []string{"0.01", "1.00", "333.33", "1234.56", "99999.99"}
	for _, v := range values {
		original := decimal.RequireFromString(v)
		result, err := calc.Correct(context.Background(), original, date(2019, 5, 10), date(2022, 5, 10))
		require.NoError(t, err)

		assert.LessOrEqual(t, -result.CorrectedValue.Exponent(), int32(2), "corrected value %s has more than 2 places", result.CorrectedValue)
		assert.True(t, result.Difference.Equal(result.CorrectedValue.Sub(original)))

		exact := original.Mul(decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100))))
		assert.True(t, result.CorrectedValue.Sub(exact).Abs().LessThanOrEqual(decimal.RequireFromString("0.005")))
	}
}

func TestCalculator_Correct_Monotonic(t *testing.T) {
	calc := NewCalculator(&flatSeries{monthly: decimal.RequireFromString("0.87"), months: 48})
	ref := date(2019, 1, 1)
	original := decimal.RequireFromString("1500.00")

	previous := decimal.Zero
	for asOf := ref.AddDate(0, 2, 0); asOf.Before(ref.AddDate(6, 0, 0)); asOf = asOf.AddDate(0, 0, 17) {
		result, err := calc.Correct(context.Background(), original, ref, asOf)
		require.NoError(t, err)
		assert.True(t, result.CorrectedValue.GreaterThanOrEqual(previous),
			"corrected value decreased at %s", asOf.Format(time.DateOnly))
		previous = result.CorrectedValue
	}
}

func TestMonthsElapsed(t *testing.T) {
	assert.Equal(t, 0, MonthsElapsed(date(2021, 1, 1), date(2021, 1, 30)))
	assert.Equal(t, 1, MonthsElapsed(date(2021, 1, 1), date(2021, 1, 31)))
	assert.Equal(t, 24, MonthsElapsed(date(2021, 1, 1), date(2023, 1, 1)))
	assert.Equal(t, 0, MonthsElapsed(date(2023, 1, 1), date(2021, 1, 1)))
	assert.Equal(t, 1, MonthsElapsed(time.Date(2021, 1, 1, 23, 0, 0, 0, time.UTC), time.Date(2021, 1, 31, 1, 0, 0, 0, time.UTC)))
}
