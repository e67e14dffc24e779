package engine

import (
	"context"
	"time"

	"github.com/Veraticus/credit-engine/internal/classifier"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

// Classifier defines the contract for retention classification.
type Classifier interface {
	Classify(payment *model.PaymentRecord, rules []model.RetentionRule) classifier.Result
	ReviewThreshold() int
}

// Corrector defines the contract for monetary correction.
type Corrector interface {
	Correct(ctx context.Context, originalValue decimal.Decimal, referenceDate, asOf time.Time) (*model.CorrectionResult, error)
}

// ProgressFunc observes run progress as a percentage from 0 to 100.
// It never affects the outcome of a run.
type ProgressFunc func(percent int)
