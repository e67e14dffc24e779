// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

// RateSeries supplies reference interest rates for monetary correction.
// Implementations are read-only from the engine's perspective and may be shared.
type RateSeries interface {
	// MonthlyRate returns the rate for a month, index 0 being the most recent.
	MonthlyRate(ctx context.Context, monthIndex int) (decimal.Decimal, error)
	// AccumulatedRate returns the cumulative rate over the last monthsBack months.
	AccumulatedRate(ctx context.Context, monthsBack int) (decimal.Decimal, error)
	// Months is the length of the known series.
	Months() int
}

// PaymentFilter defines filtering options for payment queries.
type PaymentFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	SupplierID string
	Limit      int
	Offset     int
}

// OpportunityFilter defines filtering options for opportunity queries.
type OpportunityFilter struct {
	RunID      string
	SupplierID string
	Statuses   []model.CreditStatus
	Limit      int
	Offset     int
}

// StatusChange is one audited lifecycle transition.
type StatusChange struct {
	ChangedAt     time.Time          `json:"changed_at"`
	OpportunityID string             `json:"opportunity_id"`
	FromStatus    model.CreditStatus `json:"from_status"`
	ToStatus      model.CreditStatus `json:"to_status"`
	Reason        string             `json:"reason,omitempty"`
}

// RunSummary is a lightweight listing entry for analysis runs.
type RunSummary struct {
	StartedAt        time.Time       `json:"started_at"`
	ID               string          `json:"id"`
	ClientID         string          `json:"client_id"`
	Status           model.RunStatus `json:"status"`
	TotalsIdentified decimal.Decimal `json:"totals_identified"`
	TotalsApproved   decimal.Decimal `json:"totals_approved"`
	Opportunities    int             `json:"opportunities"`
	Skipped          int             `json:"skipped"`
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Payment operations
	SavePayments(ctx context.Context, payments []model.PaymentRecord) error
	GetPayments(ctx context.Context, filter PaymentFilter) ([]model.PaymentRecord, error)
	GetPaymentByID(ctx context.Context, id string) (*model.PaymentRecord, error)

	// Rule operations
	SaveRules(ctx context.Context, rules []model.RetentionRule) error
	GetRules(ctx context.Context) ([]model.RetentionRule, error)
	DeleteRule(ctx context.Context, id int) error

	// Rate series operations
	SaveMonthlyRates(ctx context.Context, rates []model.MonthlyRate) error
	GetMonthlyRates(ctx context.Context) ([]model.MonthlyRate, error)

	// Analysis run operations
	SaveAnalysisRun(ctx context.Context, run *model.AnalysisRun) error
	GetAnalysisRun(ctx context.Context, id string) (*model.AnalysisRun, error)
	ListAnalysisRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// Opportunity operations
	GetOpportunity(ctx context.Context, id string) (*model.CreditOpportunity, error)
	ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.CreditOpportunity, error)
	UpdateOpportunity(ctx context.Context, previous model.CreditStatus, opp *model.CreditOpportunity) error
	GetOpportunityHistory(ctx context.Context, id string) ([]StatusChange, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	Storage
}

// ReportWriter publishes opportunities to an external destination.
type ReportWriter interface {
	Write(ctx context.Context, opps []model.CreditOpportunity, summary *ReportSummary) error
}

// ReportSummary contains aggregate information for the report.
type ReportSummary struct {
	GeneratedAt time.Time
	ClientID    string
	RunID       string
	Totals      model.Totals
}
