// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/taxid"
	"github.com/shopspring/decimal"
)

// ServiceCategory is the kind of service a payment was made for.
type ServiceCategory string

// Service categories recognized by the default rule set.
const (
	CategoryTechnology  ServiceCategory = "technology"
	CategoryConsulting  ServiceCategory = "consulting"
	CategoryMaintenance ServiceCategory = "maintenance"
	CategoryCleaning    ServiceCategory = "cleaning"
	CategorySecurity    ServiceCategory = "security"
	CategoryEngineering ServiceCategory = "engineering"
	CategoryAdvertising ServiceCategory = "advertising"
	CategoryOther       ServiceCategory = "other"
)

// ParseCategory normalizes free-form input into a ServiceCategory.
func ParseCategory(s string) ServiceCategory {
	return ServiceCategory(strings.ToLower(strings.TrimSpace(s)))
}

// SupplierType distinguishes service providers from goods suppliers.
type SupplierType string

// Supplier types.
const (
	SupplierService SupplierType = "service"
	SupplierGoods   SupplierType = "goods"
)

// ParseSupplierType converts input into a SupplierType.
func ParseSupplierType(s string) (SupplierType, error) {
	switch st := SupplierType(strings.ToLower(strings.TrimSpace(s))); st {
	case SupplierService, SupplierGoods:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown supplier type %q", common.ErrInvalidPayment, s)
	}
}

// PaymentRecord is one payment or invoice event subject to potential retention.
// Records are immutable once imported.
type PaymentRecord struct {
	PaymentDate      time.Time       `json:"payment_date"`
	ID               string          `json:"id"`
	SupplierID       string          `json:"supplier_id"`
	SupplierTaxID    string          `json:"supplier_tax_id"`
	Category         ServiceCategory `json:"category"`
	SupplierType     SupplierType    `json:"supplier_type"`
	PaymentAmount    decimal.Decimal `json:"payment_amount"`
	TaxableAmount    decimal.Decimal `json:"taxable_amount"`
	IsExemptSupplier bool            `json:"is_exempt_supplier"`
}

// Validate checks the structural and numeric invariants of a payment.
func (p *PaymentRecord) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing ID", common.ErrInvalidPayment)
	}
	if strings.TrimSpace(p.SupplierID) == "" {
		return fmt.Errorf("%w: payment %s: missing supplier ID", common.ErrInvalidPayment, p.ID)
	}
	if p.PaymentDate.IsZero() {
		return fmt.Errorf("%w: payment %s: missing payment date", common.ErrInvalidPayment, p.ID)
	}
	if _, err := taxid.Validate(p.SupplierTaxID); err != nil {
		return fmt.Errorf("%w: payment %s: %w", common.ErrInvalidPayment, p.ID, err)
	}
	if _, err := ParseSupplierType(string(p.SupplierType)); err != nil {
		return fmt.Errorf("payment %s: %w", p.ID, err)
	}
	if p.PaymentAmount.IsNegative() {
		return fmt.Errorf("%w: payment %s: payment amount %s is negative",
			common.ErrInvalidNumericInput, p.ID, p.PaymentAmount)
	}
	if p.TaxableAmount.IsNegative() {
		return fmt.Errorf("%w: payment %s: taxable amount %s is negative",
			common.ErrInvalidNumericInput, p.ID, p.TaxableAmount)
	}
	if p.TaxableAmount.GreaterThan(p.PaymentAmount) {
		return fmt.Errorf("%w: payment %s: taxable amount %s exceeds payment amount %s",
			common.ErrInvalidNumericInput, p.ID, p.TaxableAmount, p.PaymentAmount)
	}
	return nil
}
