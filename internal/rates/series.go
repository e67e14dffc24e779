// Package rates provides reference interest-rate series used for monetary correction.
package rates

import (
	"context"
	"fmt"
	"sort"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/shopspring/decimal"
)

// Method selects how monthly rates are accumulated.
type Method string

// Accumulation methods.
const (
	// MethodSimple sums monthly rates, as the federal revenue service does for refunds.
	MethodSimple Method = "simple"
	// MethodCompound chains monthly growth factors.
	MethodCompound Method = "compound"
)

// ParseMethod validates a configured accumulation method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodSimple, MethodCompound:
		return m, nil
	case "":
		return MethodSimple, nil
	default:
		return "", fmt.Errorf("%w: rate accumulation method %q", common.ErrInvalidConfig, s)
	}
}

const accumulatedPlaces = 4

// Series is an in-memory monthly rate series ordered newest first.
type Series struct {
	rates       []model.MonthlyRate
	accumulated []decimal.Decimal
	method      Method
}

var _ service.RateSeries = (*Series)(nil)

// NewSeries builds a series from monthly rates in any order.
// Duplicate months keep the last occurrence.
func NewSeries(monthly []model.MonthlyRate, method Method) (*Series, error) {
	if method == "" {
		method = MethodSimple
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}

	byMonth := make(map[int64]model.MonthlyRate, len(monthly))
	for _, r := range monthly {
		if r.RatePercent.IsNegative() {
			return nil, fmt.Errorf("%w: negative rate %s for %s",
				common.ErrInvalidNumericInput, r.RatePercent, r.Month.Format("2006-01"))
		}
		r.Month = model.MonthStart(r.Month)
		byMonth[r.Month.Unix()] = r
	}

	ordered := make([]model.MonthlyRate, 0, len(byMonth))
	for _, r := range byMonth {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Month.After(ordered[j].Month)
	})

	s := &Series{rates: ordered, method: method}
	s.accumulated = s.accumulate()
	return s, nil
}

// accumulate precomputes the accumulated rate for every prefix length.
func (s *Series) accumulate() []decimal.Decimal {
	acc := make([]decimal.Decimal, len(s.rates)+1)
	acc[0] = decimal.Zero

	factor := decimal.NewFromInt(1)
	for i, r := range s.rates {
		switch s.method {
		case MethodCompound:
			factor = factor.Mul(model.GrowthFactor(r.RatePercent))
			acc[i+1] = factor.Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Round(accumulatedPlaces)
		default:
			acc[i+1] = acc[i].Add(r.RatePercent)
		}
	}
	return acc
}

// Months returns the number of months in the series.
func (s *Series) Months() int {
	return len(s.rates)
}

// Method returns the accumulation method.
func (s *Series) Method() Method {
	return s.method
}

// Rates returns a copy of the series, newest first.
func (s *Series) Rates() []model.MonthlyRate {
	out := make([]model.MonthlyRate, len(s.rates))
	copy(out, s.rates)
	return out
}

// MonthlyRate returns the rate monthIndex months before the latest month.
func (s *Series) MonthlyRate(_ context.Context, monthIndex int) (decimal.Decimal, error) {
	if monthIndex < 0 || monthIndex >= len(s.rates) {
		return decimal.Zero, fmt.Errorf("%w: month index %d outside series of %d months",
			common.ErrRateSeriesUnavailable, monthIndex, len(s.rates))
	}
	return s.rates[monthIndex].RatePercent, nil
}

// AccumulatedRate returns the accumulated rate over the most recent monthsBack months.
func (s *Series) AccumulatedRate(_ context.Context, monthsBack int) (decimal.Decimal, error) {
	if monthsBack < 0 || monthsBack > len(s.rates) {
		return decimal.Zero, fmt.Errorf("%w: %d months requested from series of %d months",
			common.ErrRateSeriesUnavailable, monthsBack, len(s.rates))
	}
	return s.accumulated[monthsBack], nil
}

// RateStore is the subset of storage needed to load a series.
type RateStore interface {
	GetMonthlyRates(ctx context.Context) ([]model.MonthlyRate, error)
}

// Load builds a series from persisted monthly rates.
func Load(ctx context.Context, store RateStore, method Method) (*Series, error) {
	monthly, err := store.GetMonthlyRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly rates: %w", err)
	}
	if len(monthly) == 0 {
		return nil, common.NewUserError("no reference rates imported; run 'credit rates fetch' or 'credit rates import' first",
			common.ErrRateSeriesUnavailable)
	}
	return NewSeries(monthly, method)
}
