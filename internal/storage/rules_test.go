package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	rules := []model.RetentionRule{
		{Category: model.AnyCategory, SupplierType: model.SupplierService, RatePercent: dec("1.5"), Citation: "IN RFB 1.234/2012"},
		{Category: model.CategoryConsulting, SupplierType: model.SupplierService, RatePercent: dec("4.65"), Citation: "Lei 10.833/2003, art. 30"},
		{Category: model.CategoryCleaning, SupplierType: model.SupplierService, RatePercent: dec("11"), Citation: "Lei 8.212/1991, art. 31", Priority: 10},
	}
	require.NoError(t, store.SaveRules(ctx, rules))
	for _, r := range rules {
		assert.NotZero(t, r.ID)
	}

	got, err := store.GetRules(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Priority first, then specific categories ahead of the wildcard.
	assert.Equal(t, model.CategoryCleaning, got[0].Category)
	assert.Equal(t, model.CategoryConsulting, got[1].Category)
	assert.Equal(t, model.AnyCategory, got[2].Category)
	assert.Equal(t, "4.65", got[1].RatePercent.String())

	t.Run("upsert replaces same category and supplier type", func(t *testing.T) {
		update := []model.RetentionRule{
			{Category: model.CategoryConsulting, SupplierType: model.SupplierService, RatePercent: dec("4.8"), Citation: "updated", Exempt: true},
		}
		require.NoError(t, store.SaveRules(ctx, update))
		assert.Equal(t, rules[1].ID, update[0].ID)

		got, err := store.GetRules(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "updated", got[1].Citation)
		assert.True(t, got[1].Exempt)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteRule(ctx, rules[0].ID))
		assert.ErrorIs(t, store.DeleteRule(ctx, rules[0].ID), common.ErrNotFound)

		got, err := store.GetRules(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestSaveRules_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.SaveRules(ctx, nil), ErrEmptySlice)

	err := store.SaveRules(ctx, []model.RetentionRule{
		{Category: model.CategoryTechnology, SupplierType: model.SupplierService, RatePercent: dec("101"), Citation: "x"},
	})
	assert.ErrorIs(t, err, common.ErrInvalidRule)
}
