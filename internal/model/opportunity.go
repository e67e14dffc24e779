package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreditStatus is the review state of a credit opportunity.
type CreditStatus string

// Credit statuses.
const (
	StatusIdentified CreditStatus = "identified"
	StatusAnalyzing  CreditStatus = "analyzing"
	StatusConfirmed  CreditStatus = "confirmed"
	StatusRejected   CreditStatus = "rejected"
	StatusApproved   CreditStatus = "approved"
	StatusRecovered  CreditStatus = "recovered"
)

// AllStatuses lists every credit status in lifecycle order.
var AllStatuses = []CreditStatus{
	StatusIdentified,
	StatusAnalyzing,
	StatusConfirmed,
	StatusRejected,
	StatusApproved,
	StatusRecovered,
}

// ParseStatus validates a textual status.
func ParseStatus(s string) (CreditStatus, error) {
	status := CreditStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown credit status %q", s)
}

// IsTerminal reports whether no further transitions leave this status.
func (s CreditStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusRecovered
}

// CountsAsIdentified reports whether the status contributes to the identified total.
func (s CreditStatus) CountsAsIdentified() bool {
	return s == StatusIdentified || s == StatusConfirmed || s == StatusAnalyzing
}

// CountsAsApproved reports whether the status contributes to the approved total.
func (s CreditStatus) CountsAsApproved() bool {
	return s == StatusApproved || s == StatusRecovered
}

// CreditOpportunity is the classified, possibly corrected, result of applying a rule to a payment.
type CreditOpportunity struct {
	IdentificationDate time.Time       `json:"identification_date"`
	ID                 string          `json:"id"`
	RunID              string          `json:"run_id,omitempty"`
	PaymentID          string          `json:"payment_id"`
	SupplierID         string          `json:"supplier_id"`
	Status             CreditStatus    `json:"status"`
	ApplicableRule     string          `json:"applicable_rule"`
	RejectionReason    string          `json:"rejection_reason,omitempty"`
	RetentionRate      decimal.Decimal `json:"retention_rate"`
	RetentionAmount    decimal.Decimal `json:"retention_amount"`
	CorrectionAmount   decimal.Decimal `json:"correction_amount"`
	Confidence         int             `json:"confidence"`
	RetentionRequired  bool            `json:"retention_required"`
}

// TotalCredit is always derived from its inputs and never stored.
func (o *CreditOpportunity) TotalCredit() decimal.Decimal {
	return o.RetentionAmount.Add(o.CorrectionAmount)
}

// Validate checks the opportunity invariants.
func (o *CreditOpportunity) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("opportunity: missing ID")
	}
	if strings.TrimSpace(o.PaymentID) == "" {
		return fmt.Errorf("opportunity %s: missing payment ID", o.ID)
	}
	if _, err := ParseStatus(string(o.Status)); err != nil {
		return fmt.Errorf("opportunity %s: %w", o.ID, err)
	}
	if o.RetentionRate.IsNegative() || o.RetentionRate.GreaterThan(hundred) {
		return fmt.Errorf("opportunity %s: retention rate %s outside 0-100", o.ID, o.RetentionRate)
	}
	if o.RetentionAmount.IsNegative() {
		return fmt.Errorf("opportunity %s: negative retention amount", o.ID)
	}
	if o.CorrectionAmount.IsNegative() {
		return fmt.Errorf("opportunity %s: negative correction amount", o.ID)
	}
	if o.Confidence < 0 || o.Confidence > 100 {
		return fmt.Errorf("opportunity %s: confidence %d outside 0-100", o.ID, o.Confidence)
	}
	hasReason := strings.TrimSpace(o.RejectionReason) != ""
	if o.Status == StatusRejected && !hasReason {
		return fmt.Errorf("opportunity %s: rejected without a reason", o.ID)
	}
	if o.Status != StatusRejected && hasReason {
		return fmt.Errorf("opportunity %s: rejection reason set on %s opportunity", o.ID, o.Status)
	}
	return nil
}

// Totals aggregates total credit by review bucket.
type Totals struct {
	ByStatus   map[CreditStatus]decimal.Decimal
	Identified decimal.Decimal
	Approved   decimal.Decimal
	Count      int
}

// Summarize recomputes totals from the current state of each opportunity.
func Summarize(opps []CreditOpportunity) Totals {
	totals := Totals{
		ByStatus:   make(map[CreditStatus]decimal.Decimal),
		Identified: decimal.Zero,
		Approved:   decimal.Zero,
		Count:      len(opps),
	}

	for i := range opps {
		credit := opps[i].TotalCredit()
		status := opps[i].Status
		totals.ByStatus[status] = totals.ByStatus[status].Add(credit)

		switch {
		case status.CountsAsIdentified():
			totals.Identified = totals.Identified.Add(credit)
		case status.CountsAsApproved():
			totals.Approved = totals.Approved.Add(credit)
		}
	}

	return totals
}
