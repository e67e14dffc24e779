package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus indicates how an analysis run ended.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunComplete  RunStatus = "complete"
	RunCancelled RunStatus = "cancelled"
)

// SkipCode identifies why a payment was not turned into an opportunity.
type SkipCode string

// Skip codes.
const (
	SkipInvalidNumericInput SkipCode = "invalid_numeric_input"
	SkipInvalidDateRange    SkipCode = "invalid_date_range"
	SkipInvalidPayment      SkipCode = "invalid_payment"
)

// SkippedRecord reports a payment rejected during a run.
type SkippedRecord struct {
	PaymentID string   `json:"payment_id"`
	Code      SkipCode `json:"code"`
	Reason    string   `json:"reason"`
}

// AnalysisRun is a single batch scan over a payment window.
type AnalysisRun struct {
	StartedAt            time.Time           `json:"started_at"`
	FinishedAt           time.Time           `json:"finished_at"`
	WindowStart          time.Time           `json:"window_start"`
	WindowEnd            time.Time           `json:"window_end"`
	AsOf                 time.Time           `json:"as_of"`
	ID                   string              `json:"id"`
	ClientID             string              `json:"client_id"`
	Status               RunStatus           `json:"status"`
	Opportunities        []CreditOpportunity `json:"opportunities"`
	Skipped              []SkippedRecord     `json:"skipped,omitempty"`
	Warnings             []Warning           `json:"warnings,omitempty"`
	MinimumCreditValue   decimal.Decimal     `json:"minimum_credit_value"`
	TotalsIdentified     decimal.Decimal     `json:"totals_identified"`
	TotalsApproved       decimal.Decimal     `json:"totals_approved"`
	Total                int                 `json:"total"`
	Processed            int                 `json:"processed"`
	OutsideWindow        int                 `json:"outside_window"`
	NotApplicable        int                 `json:"not_applicable"` // opportunities with retention not required
	BelowThreshold       int                 `json:"below_threshold"`
	ApplySelicCorrection bool                `json:"apply_selic_correction"`
}

// InWindow reports whether t falls within the run window; zero bounds are open.
func (r *AnalysisRun) InWindow(t time.Time) bool {
	day := DateOnly(t)
	if !r.WindowStart.IsZero() && day.Before(DateOnly(r.WindowStart)) {
		return false
	}
	if !r.WindowEnd.IsZero() && day.After(DateOnly(r.WindowEnd)) {
		return false
	}
	return true
}

// Recompute refreshes the summary totals from the opportunities.
func (r *AnalysisRun) Recompute() {
	totals := Summarize(r.Opportunities)
	r.TotalsIdentified = totals.Identified
	r.TotalsApproved = totals.Approved
}
