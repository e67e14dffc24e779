// Package storage provides the data persistence layer for the credit engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/credit-engine/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrEmptySlice   = errors.New("slice cannot be empty")
	ErrInvalidRate  = errors.New("invalid monthly rate")
	ErrInvalidRun   = errors.New("invalid analysis run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validatePayments(payments []model.PaymentRecord) error {
	if payments == nil {
		return fmt.Errorf("%w: payments", ErrNilParameter)
	}
	if len(payments) == 0 {
		return fmt.Errorf("%w: payments", ErrEmptySlice)
	}

	for i := range payments {
		if err := payments[i].Validate(); err != nil {
			return fmt.Errorf("payment at index %d: %w", i, err)
		}
	}
	return nil
}

func validateRules(rules []model.RetentionRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: rules", ErrEmptySlice)
	}

	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return fmt.Errorf("rule at index %d: %w", i, err)
		}
	}
	return nil
}

func validateMonthlyRates(rates []model.MonthlyRate) error {
	if len(rates) == 0 {
		return fmt.Errorf("%w: rates", ErrEmptySlice)
	}

	for i, r := range rates {
		if r.Month.IsZero() {
			return fmt.Errorf("%w: rate at index %d: missing month", ErrInvalidRate, i)
		}
		if r.RatePercent.IsNegative() {
			return fmt.Errorf("%w: rate at index %d: negative rate %s", ErrInvalidRate, i, r.RatePercent)
		}
	}
	return nil
}

// validateRun checks the run and every opportunity it carries.
func validateRun(run *model.AnalysisRun) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRun)
	}
	if run.StartedAt.IsZero() {
		return fmt.Errorf("%w: run %s: missing start time", ErrInvalidRun, run.ID)
	}

	for i := range run.Opportunities {
		if err := validateOpportunity(&run.Opportunities[i]); err != nil {
			return fmt.Errorf("opportunity at index %d: %w", i, err)
		}
	}
	return nil
}

func validateOpportunity(opp *model.CreditOpportunity) error {
	if opp == nil {
		return fmt.Errorf("%w: opportunity", ErrNilParameter)
	}
	return opp.Validate()
}
