package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestDBWithOptions(t *testing.T) {
	db := SetupTestDBWithOptions(t, TestDBOptions{
		Rules:    StandardRules(),
		Payments: Payments(3, "500.00"),
		Rates:    FlatRates(Date(2024, time.June, 1), 12, "1"),
	})
	ctx := context.Background()

	rules, err := db.Storage.GetRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, len(StandardRules()))

	payments, err := db.Storage.GetPayments(ctx, service.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, payments, 3)

	rates, err := db.Storage.GetMonthlyRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 12)
	assert.True(t, rates[0].Month.Equal(Date(2024, time.June, 1)))
}

func TestPaymentBuilder(t *testing.T) {
	p := NewPayment("x").Amount("200").Taxable("150").Goods().Exempt().Category(model.CategoryCleaning).Build()

	require.NoError(t, p.Validate())
	assert.Equal(t, model.SupplierGoods, p.SupplierType)
	assert.True(t, p.IsExemptSupplier)
	assert.Equal(t, "150", p.TaxableAmount.String())
}

func TestStandardRulesAreValid(t *testing.T) {
	for _, r := range StandardRules() {
		assert.NoError(t, r.Validate())
	}
}
