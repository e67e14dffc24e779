// Package engine orchestrates analysis runs that turn payments into credit opportunities.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request describes one analysis run.
type Request struct {
	WindowStart        time.Time
	WindowEnd          time.Time
	AsOf               time.Time
	ClientID           string
	Payments           []model.PaymentRecord
	Rules              []model.RetentionRule
	MinimumCreditValue decimal.Decimal
	ApplyCorrection    bool
}

// Analyzer runs batch scans over payments. A single Analyzer may serve
// sequential or concurrent runs; each run owns its own result.
type Analyzer struct {
	classifier Classifier
	corrector  Corrector
	newID      func() string
	now        func() time.Time
}

// Config holds optional dependencies for the analyzer.
type Config struct {
	NewID func() string
	Now   func() time.Time
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		NewID: func() string { return uuid.NewString() },
		Now:   time.Now,
	}
}

// New creates an analyzer. corrector may be nil when runs never apply correction.
func New(classifier Classifier, corrector Corrector) *Analyzer {
	return NewWithConfig(classifier, corrector, DefaultConfig())
}

// NewWithConfig creates an analyzer with custom ID and clock sources.
func NewWithConfig(classifier Classifier, corrector Corrector, config Config) *Analyzer {
	defaults := DefaultConfig()
	if config.NewID == nil {
		config.NewID = defaults.NewID
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	return &Analyzer{
		classifier: classifier,
		corrector:  corrector,
		newID:      config.NewID,
		now:        config.Now,
	}
}

// Run classifies every payment in input order and returns the resulting run.
// Cancelling ctx stops the run between records; the partial run is returned
// with status cancelled and a nil error.
func (a *Analyzer) Run(ctx context.Context, req Request, progress ProgressFunc) (*model.AnalysisRun, error) {
	if len(req.Rules) == 0 {
		return nil, common.ErrNoRulesConfigured
	}
	if req.MinimumCreditValue.IsNegative() {
		return nil, fmt.Errorf("%w: minimum credit value %s is negative",
			common.ErrInvalidNumericInput, req.MinimumCreditValue)
	}
	if !req.WindowStart.IsZero() && !req.WindowEnd.IsZero() && req.WindowEnd.Before(req.WindowStart) {
		return nil, fmt.Errorf("%w: window ends before it starts", common.ErrInvalidDateRange)
	}
	if req.ApplyCorrection && a.corrector == nil {
		return nil, fmt.Errorf("correction requested without a rate series: %w", common.ErrRateSeriesUnavailable)
	}
	if progress == nil {
		progress = func(int) {}
	}

	now := a.now()
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = now
	}

	run := &model.AnalysisRun{
		ID:                   a.newID(),
		ClientID:             req.ClientID,
		WindowStart:          req.WindowStart,
		WindowEnd:            req.WindowEnd,
		AsOf:                 asOf,
		MinimumCreditValue:   req.MinimumCreditValue,
		ApplySelicCorrection: req.ApplyCorrection,
		Status:               model.RunRunning,
		StartedAt:            now,
		Total:                len(req.Payments),
		Opportunities:        make([]model.CreditOpportunity, 0, len(req.Payments)),
	}

	slog.Info("Starting analysis run",
		"run_id", run.ID,
		"client_id", run.ClientID,
		"payments", run.Total,
		"rules", len(req.Rules),
		"minimum_credit", run.MinimumCreditValue.String(),
		"apply_correction", run.ApplySelicCorrection)

	for i := range req.Payments {
		select {
		case <-ctx.Done():
			return a.finish(run, model.RunCancelled), nil
		default:
		}

		if err := a.process(ctx, run, &req.Payments[i], req.Rules); err != nil {
			return nil, fmt.Errorf("analysis aborted at payment %s: %w", req.Payments[i].ID, err)
		}

		run.Processed++
		progress(run.Processed * 100 / run.Total)
	}

	if run.Total == 0 {
		progress(100)
	}

	return a.finish(run, model.RunComplete), nil
}

// process handles a single payment. Only errors that invalidate the whole run are returned.
func (a *Analyzer) process(ctx context.Context, run *model.AnalysisRun, payment *model.PaymentRecord, rules []model.RetentionRule) error {
	if err := payment.Validate(); err != nil {
		a.skip(run, payment.ID, err)
		return nil
	}

	if !run.InWindow(payment.PaymentDate) {
		run.OutsideWindow++
		return nil
	}

	result := a.classifier.Classify(payment, rules)
	if !result.RetentionRequired {
		run.NotApplicable++
		slog.Debug("Retention not required",
			"payment_id", payment.ID,
			"rule", result.Rule)
	}

	opp := model.CreditOpportunity{
		ID:                 a.newID(),
		RunID:              run.ID,
		PaymentID:          payment.ID,
		SupplierID:         payment.SupplierID,
		RetentionRate:      result.Rate,
		RetentionAmount:    result.Amount,
		CorrectionAmount:   decimal.Zero,
		IdentificationDate: run.StartedAt,
		Status:             result.InitialStatus(a.classifier.ReviewThreshold()),
		ApplicableRule:     result.Rule,
		RetentionRequired:  result.RetentionRequired,
		Confidence:         result.Confidence,
	}

	if run.ApplySelicCorrection && result.Amount.IsPositive() {
		corrected, err := a.corrector.Correct(ctx, result.Amount, payment.PaymentDate, run.AsOf)
		if err != nil {
			if common.IsRecordError(err) {
				a.skip(run, payment.ID, err)
				return nil
			}
			return err
		}
		opp.CorrectionAmount = corrected.Difference
		for _, w := range corrected.Warnings {
			w.PaymentID = payment.ID
			run.Warnings = append(run.Warnings, w)
		}
	}

	if result.NeedsReview {
		run.Warnings = append(run.Warnings, model.Warning{
			Code:      model.WarningNeedsReview,
			Message:   "taxable amount missing; opportunity requires manual analysis",
			PaymentID: payment.ID,
		})
	}

	if opp.TotalCredit().LessThan(run.MinimumCreditValue) {
		run.BelowThreshold++
		return nil
	}

	slog.Debug("Identified credit opportunity",
		"payment_id", payment.ID,
		"status", opp.Status,
		"total_credit", opp.TotalCredit().StringFixed(model.MoneyPlaces),
		"confidence", opp.Confidence)

	run.Opportunities = append(run.Opportunities, opp)
	return nil
}

func (a *Analyzer) skip(run *model.AnalysisRun, paymentID string, err error) {
	code := model.SkipInvalidPayment
	switch {
	case errors.Is(err, common.ErrInvalidNumericInput):
		code = model.SkipInvalidNumericInput
	case errors.Is(err, common.ErrInvalidDateRange):
		code = model.SkipInvalidDateRange
	}

	slog.Warn("Skipping payment", "payment_id", paymentID, "code", code, "error", err)
	run.Skipped = append(run.Skipped, model.SkippedRecord{
		PaymentID: paymentID,
		Code:      code,
		Reason:    err.Error(),
	})
}

func (a *Analyzer) finish(run *model.AnalysisRun, status model.RunStatus) *model.AnalysisRun {
	run.Status = status
	run.FinishedAt = a.now()
	run.Recompute()

	slog.Info("Analysis run finished",
		"run_id", run.ID,
		"status", run.Status,
		"processed", run.Processed,
		"opportunities", len(run.Opportunities),
		"skipped", len(run.Skipped),
		"totals_identified", run.TotalsIdentified.StringFixed(model.MoneyPlaces),
		"duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	return run
}
