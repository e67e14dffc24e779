// Package classifier decides whether a payment required tax retention and scores
// how confident that decision is.
package classifier

import (
	"fmt"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

// NoApplicableRule is the citation used when no retention rule matches.
const NoApplicableRule = "no applicable rule"

// NoRuleConfidence is the confidence assigned when no rule matches.
const NoRuleConfidence = 50

// Config holds the scoring parameters for the classifier.
// The defaults mirror the consultancy's historical heuristic and are not tax law.
type Config struct {
	BaseConfidence    map[model.ServiceCategory]int
	ExemptionCitation string
	DefaultConfidence int
	FullBaseBonus     int
	AmbiguousPenalty  int
	ReviewThreshold   int
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		BaseConfidence: map[model.ServiceCategory]int{
			model.CategoryTechnology:  85,
			model.CategoryConsulting:  80,
			model.CategoryMaintenance: 90,
		},
		DefaultConfidence: 70,
		FullBaseBonus:     10,
		AmbiguousPenalty:  15,
		ReviewThreshold:   75,
		ExemptionCitation: "supplier exempt from retention (IN RFB 1.234/2012, art. 4)",
	}
}

// Result is the outcome of classifying one payment.
type Result struct {
	Rule              string
	Rate              decimal.Decimal
	Amount            decimal.Decimal
	Confidence        int
	RetentionRequired bool
	Exempt            bool
	NeedsReview       bool
	Matched           bool
}

// InitialStatus maps the result onto the first lifecycle state.
func (r Result) InitialStatus(reviewThreshold int) model.CreditStatus {
	if r.NeedsReview || r.Confidence < reviewThreshold {
		return model.StatusAnalyzing
	}
	return model.StatusIdentified
}

// Classifier applies retention rules to payments. It has no side effects.
type Classifier struct {
	config Config
}

// New creates a classifier with the default configuration.
func New() *Classifier {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a classifier with a custom configuration.
// Unset numeric fields fall back to their defaults.
func NewWithConfig(config Config) *Classifier {
	defaults := DefaultConfig()
	if config.BaseConfidence == nil {
		config.BaseConfidence = defaults.BaseConfidence
	}
	if config.DefaultConfidence == 0 {
		config.DefaultConfidence = defaults.DefaultConfidence
	}
	if config.ReviewThreshold == 0 {
		config.ReviewThreshold = defaults.ReviewThreshold
	}
	if config.ExemptionCitation == "" {
		config.ExemptionCitation = defaults.ExemptionCitation
	}
	return &Classifier{config: config}
}

// Config returns the active configuration.
func (c *Classifier) Config() Config {
	return c.config
}

// ReviewThreshold is the confidence below which opportunities start in analysis.
func (c *Classifier) ReviewThreshold() int {
	return c.config.ReviewThreshold
}

// Match returns the first rule matching the payment's category and supplier type.
func Match(payment *model.PaymentRecord, rules []model.RetentionRule) (*model.RetentionRule, bool) {
	for i := range rules {
		if rules[i].Matches(payment.Category, payment.SupplierType) {
			return &rules[i], true
		}
	}
	return nil, false
}

// Classify applies the rule set to a single payment. An exempt supplier is
// never subject to retention, whether or not a rule matches.
func (c *Classifier) Classify(payment *model.PaymentRecord, rules []model.RetentionRule) Result {
	rule, ok := Match(payment, rules)
	if payment.IsExemptSupplier {
		return c.exempt(payment, rule)
	}
	if !ok {
		return Result{
			RetentionRequired: false,
			Rate:              decimal.Zero,
			Amount:            decimal.Zero,
			Rule:              NoApplicableRule,
			Confidence:        NoRuleConfidence,
		}
	}

	confidence, ambiguous := c.score(payment)
	result := Result{
		Matched:     true,
		Rule:        rule.Citation,
		Rate:        rule.RatePercent,
		Confidence:  confidence,
		NeedsReview: ambiguous,
	}

	if rule.Exempt {
		result.Exempt = true
		result.Rate = decimal.Zero
		result.Amount = decimal.Zero
		return result
	}

	result.RetentionRequired = true
	result.Amount = model.ApplyPercent(payment.TaxableAmount, rule.RatePercent)
	return result
}

// exempt builds the result for an exempt supplier. rule may be nil. The
// citation is the matched rule's when that rule is itself an exemption.
func (c *Classifier) exempt(payment *model.PaymentRecord, rule *model.RetentionRule) Result {
	result := Result{
		Exempt:     true,
		Rate:       decimal.Zero,
		Amount:     decimal.Zero,
		Rule:       c.config.ExemptionCitation,
		Confidence: NoRuleConfidence,
	}
	if rule == nil {
		return result
	}

	result.Matched = true
	result.Confidence, result.NeedsReview = c.score(payment)
	if rule.Exempt {
		result.Rule = rule.Citation
	}
	return result
}

// score computes the deterministic confidence for a matched payment.
func (c *Classifier) score(payment *model.PaymentRecord) (int, bool) {
	confidence, ok := c.config.BaseConfidence[payment.Category]
	if !ok {
		confidence = c.config.DefaultConfidence
	}

	ambiguous := payment.TaxableAmount.IsZero() && !payment.PaymentAmount.IsZero()
	switch {
	case ambiguous:
		confidence -= c.config.AmbiguousPenalty
	case payment.TaxableAmount.Equal(payment.PaymentAmount):
		confidence += c.config.FullBaseBonus
	}

	return clamp(confidence, 0, 100), ambiguous
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Describe renders a one-line human summary of a result.
func (r Result) Describe() string {
	if !r.RetentionRequired {
		return fmt.Sprintf("retention not required (%s), confidence %d", r.Rule, r.Confidence)
	}
	return fmt.Sprintf("retention %s%% = %s (%s), confidence %d",
		r.Rate.String(), r.Amount.StringFixed(model.MoneyPlaces), r.Rule, r.Confidence)
}
