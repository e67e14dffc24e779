package model

import (
	"fmt"
	"strings"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/shopspring/decimal"
)

// AnyCategory is the rule category that matches every service category.
const AnyCategory ServiceCategory = "*"

// RetentionRule maps a category and supplier type to a retention rate and legal citation.
type RetentionRule struct {
	Category     ServiceCategory `json:"category" yaml:"category"`
	SupplierType SupplierType    `json:"supplier_type" yaml:"supplierType"`
	Citation     string          `json:"citation" yaml:"citation"`
	RatePercent  decimal.Decimal `json:"rate_percent" yaml:"ratePercent"`
	ID           int             `json:"id" yaml:"-"`
	Priority     int             `json:"priority" yaml:"priority"`
	Exempt       bool            `json:"exempt" yaml:"exempt"`
}

// Matches reports whether the rule applies to the given category and supplier type.
func (r *RetentionRule) Matches(category ServiceCategory, supplierType SupplierType) bool {
	if r.SupplierType != supplierType {
		return false
	}
	return r.Category == AnyCategory || r.Category == category
}

// Validate checks rate bounds and required fields.
func (r *RetentionRule) Validate() error {
	if strings.TrimSpace(string(r.Category)) == "" {
		return fmt.Errorf("%w: missing category", common.ErrInvalidRule)
	}
	if _, err := ParseSupplierType(string(r.SupplierType)); err != nil {
		return fmt.Errorf("%w: %s", common.ErrInvalidRule, err.Error())
	}
	if strings.TrimSpace(r.Citation) == "" {
		return fmt.Errorf("%w: rule %s/%s: missing citation", common.ErrInvalidRule, r.Category, r.SupplierType)
	}
	if r.RatePercent.IsNegative() || r.RatePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: rule %s/%s: rate %s outside 0-100",
			common.ErrInvalidRule, r.Category, r.SupplierType, r.RatePercent)
	}
	return nil
}
