package testutil

import (
	"fmt"
	"time"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

// Tax IDs with valid check digits.
const (
	ValidCNPJ = "11.222.333/0001-81"
	ValidCPF  = "529.982.247-25"
)

// Date returns midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// StandardRules returns the default retention table used across tests.
func StandardRules() []model.RetentionRule {
	return []model.RetentionRule{
		{Category: model.CategoryTechnology, SupplierType: model.SupplierService, RatePercent: Dec("1.5"), Citation: "IN RFB 1.234/2012, art. 1"},
		{Category: model.CategoryConsulting, SupplierType: model.SupplierService, RatePercent: Dec("4.65"), Citation: "Lei 10.833/2003, art. 30"},
		{Category: model.CategoryMaintenance, SupplierType: model.SupplierService, RatePercent: Dec("1.5"), Citation: "IN RFB 1.234/2012, art. 1"},
		{Category: model.CategoryCleaning, SupplierType: model.SupplierService, RatePercent: Dec("11"), Citation: "Lei 8.212/1991, art. 31"},
		{Category: model.AnyCategory, SupplierType: model.SupplierGoods, RatePercent: Dec("0"), Citation: "no retention on goods", Exempt: true},
	}
}

// FlatRates returns count months of the same rate ending at the given month.
func FlatRates(end time.Time, count int, rate string) []model.MonthlyRate {
	rates := make([]model.MonthlyRate, count)
	for i := range rates {
		rates[i] = model.MonthlyRate{
			Month:       model.MonthStart(end).AddDate(0, -i, 0),
			RatePercent: Dec(rate),
			Source:      "test",
		}
	}
	return rates
}

// PaymentBuilder constructs payment records with sensible defaults.
type PaymentBuilder struct {
	payment model.PaymentRecord
}

// NewPayment starts a technology service payment paid in full on 2023-01-01.
func NewPayment(id string) *PaymentBuilder {
	return &PaymentBuilder{payment: model.PaymentRecord{
		ID:            id,
		SupplierID:    "supplier-" + id,
		SupplierTaxID: ValidCNPJ,
		PaymentDate:   Date(2023, time.January, 1),
		Category:      model.CategoryTechnology,
		SupplierType:  model.SupplierService,
		PaymentAmount: Dec("1000.00"),
		TaxableAmount: Dec("1000.00"),
	}}
}

// Amount sets both the payment and taxable amounts.
func (b *PaymentBuilder) Amount(amount string) *PaymentBuilder {
	b.payment.PaymentAmount = Dec(amount)
	b.payment.TaxableAmount = Dec(amount)
	return b
}

// Taxable overrides the taxable amount.
func (b *PaymentBuilder) Taxable(amount string) *PaymentBuilder {
	b.payment.TaxableAmount = Dec(amount)
	return b
}

// On sets the payment date.
func (b *PaymentBuilder) On(date time.Time) *PaymentBuilder {
	b.payment.PaymentDate = date
	return b
}

// Category sets the service category.
func (b *PaymentBuilder) Category(c model.ServiceCategory) *PaymentBuilder {
	b.payment.Category = c
	return b
}

// Supplier sets the supplier ID.
func (b *PaymentBuilder) Supplier(id string) *PaymentBuilder {
	b.payment.SupplierID = id
	return b
}

// Goods marks the supplier as a goods supplier.
func (b *PaymentBuilder) Goods() *PaymentBuilder {
	b.payment.SupplierType = model.SupplierGoods
	return b
}

// Exempt marks the supplier as exempt from retention.
func (b *PaymentBuilder) Exempt() *PaymentBuilder {
	b.payment.IsExemptSupplier = true
	return b
}

// Build returns the payment.
func (b *PaymentBuilder) Build() model.PaymentRecord {
	return b.payment
}

// Payments builds count technology payments one day apart.
func Payments(count int, amount string) []model.PaymentRecord {
	payments := make([]model.PaymentRecord, count)
	for i := range payments {
		payments[i] = NewPayment(fmt.Sprintf("p%03d", i+1)).
			Amount(amount).
			On(Date(2023, time.January, 1).AddDate(0, 0, i)).
			Build()
	}
	return payments
}
