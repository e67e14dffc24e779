package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyRates(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMonthlyRates(ctx, []model.MonthlyRate{
		{Month: day(2023, time.January, 15), RatePercent: dec("1.12"), Source: "bcb"},
		{Month: day(2023, time.March, 1), RatePercent: dec("1.17"), Source: "bcb"},
		{Month: day(2023, time.February, 1), RatePercent: dec("0.92"), Source: "bcb"},
	}))

	// Same month replaces the earlier value.
	require.NoError(t, store.SaveMonthlyRates(ctx, []model.MonthlyRate{
		{Month: day(2023, time.February, 28), RatePercent: dec("0.95"), Source: "manual"},
	}))

	rates, err := store.GetMonthlyRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 3)

	assert.True(t, rates[0].Month.Equal(day(2023, time.March, 1)))
	assert.True(t, rates[1].Month.Equal(day(2023, time.February, 1)))
	assert.Equal(t, "0.95", rates[1].RatePercent.String())
	assert.Equal(t, "manual", rates[1].Source)
	assert.True(t, rates[2].Month.Equal(day(2023, time.January, 1)))
}

func TestSaveMonthlyRates_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.SaveMonthlyRates(ctx, nil), ErrEmptySlice)
	assert.ErrorIs(t, store.SaveMonthlyRates(ctx, []model.MonthlyRate{{RatePercent: dec("1")}}), ErrInvalidRate)
	assert.ErrorIs(t, store.SaveMonthlyRates(ctx, []model.MonthlyRate{
		{Month: day(2023, time.January, 1), RatePercent: dec("-0.1")},
	}), ErrInvalidRate)
}
