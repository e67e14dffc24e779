package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/correction"
	"github.com/Veraticus/credit-engine/internal/lifecycle"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/rates"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/shopspring/decimal"
)

// RunOptions selects the payments and parameters of a persisted analysis.
type RunOptions struct {
	WindowStart        time.Time
	WindowEnd          time.Time
	AsOf               time.Time
	ClientID           string
	SupplierID         string
	MinimumCreditValue decimal.Decimal
	ApplyCorrection    bool
}

// Runner wires the analyzer to storage: it loads inputs, runs and saves the result.
type Runner struct {
	store      service.Storage
	classifier Classifier
	config     Config
	method     rates.Method
}

// NewRunner creates a runner over store.
func NewRunner(store service.Storage, classifier Classifier, method rates.Method) *Runner {
	return NewRunnerWithConfig(store, classifier, method, DefaultConfig())
}

// NewRunnerWithConfig creates a runner with custom ID and clock sources.
func NewRunnerWithConfig(store service.Storage, classifier Classifier, method rates.Method, config Config) *Runner {
	if method == "" {
		method = rates.MethodSimple
	}
	return &Runner{
		store:      store,
		classifier: classifier,
		method:     method,
		config:     config,
	}
}

// Series loads the stored reference rates.
func (r *Runner) Series(ctx context.Context) (*rates.Series, error) {
	return rates.Load(ctx, r.store, r.method)
}

// Correct restates a single value using the stored rate series.
func (r *Runner) Correct(ctx context.Context, value decimal.Decimal, referenceDate, asOf time.Time) (*model.CorrectionResult, error) {
	series, err := r.Series(ctx)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = r.now()
	}
	return correction.NewCalculator(series).Correct(ctx, value, referenceDate, asOf)
}

// Analyze runs an analysis over the stored payments and persists the run,
// including a cancelled partial run.
func (r *Runner) Analyze(ctx context.Context, opts RunOptions, progress ProgressFunc) (*model.AnalysisRun, error) {
	rules, err := r.store.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, common.NewUserError("no retention rules configured; run 'credit rules import' first",
			common.ErrNoRulesConfigured)
	}

	payments, err := r.store.GetPayments(ctx, service.PaymentFilter{SupplierID: opts.SupplierID})
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	var corrector Corrector
	if opts.ApplyCorrection {
		series, seriesErr := r.Series(ctx)
		if seriesErr != nil {
			return nil, seriesErr
		}
		corrector = correction.NewCalculator(series)
	}

	analyzer := NewWithConfig(r.classifier, corrector, r.config)
	run, err := analyzer.Run(ctx, Request{
		WindowStart:        opts.WindowStart,
		WindowEnd:          opts.WindowEnd,
		AsOf:               opts.AsOf,
		ClientID:           opts.ClientID,
		Payments:           payments,
		Rules:              rules,
		MinimumCreditValue: opts.MinimumCreditValue,
		ApplyCorrection:    opts.ApplyCorrection,
	}, progress)
	if err != nil {
		return nil, err
	}

	// The caller's context may already be cancelled; the partial run is still saved.
	saveCtx := context.WithoutCancel(ctx)
	if err := r.store.SaveAnalysisRun(saveCtx, run); err != nil {
		return nil, fmt.Errorf("failed to save analysis run: %w", err)
	}

	return run, nil
}

// Transition applies a lifecycle action to a stored opportunity and persists it.
func (r *Runner) Transition(ctx context.Context, id, action, reason string) (*model.CreditOpportunity, error) {
	to, err := lifecycle.ParseAction(action)
	if err != nil {
		return nil, err
	}

	opp, err := r.store.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := opp.Status
	updated, err := lifecycle.Transition(*opp, to, reason)
	if err != nil {
		return nil, err
	}

	if err := r.store.UpdateOpportunity(ctx, previous, &updated); err != nil {
		if errors.Is(err, common.ErrInvalidTransition) {
			return nil, fmt.Errorf("opportunity %s changed concurrently: %w", id, err)
		}
		return nil, err
	}

	slog.Info("Opportunity transitioned",
		"opportunity_id", id,
		"from", previous,
		"to", updated.Status)

	return &updated, nil
}

func (r *Runner) now() time.Time {
	if r.config.Now != nil {
		return r.config.Now()
	}
	return time.Now()
}
