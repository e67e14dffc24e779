package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisRun_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	run := createTestRun("run-1",
		createTestOpportunity("o-3", "sup-a", model.StatusIdentified, "300.00"),
		createTestOpportunity("o-1", "sup-b", model.StatusAnalyzing, "120.50"),
		createTestOpportunity("o-2", "sup-a", model.StatusIdentified, "45.10"),
	)
	run.WindowStart = day(2023, time.January, 1)
	run.ApplySelicCorrection = true
	run.Skipped = []model.SkippedRecord{
		{PaymentID: "bad-1", Code: model.SkipInvalidNumericInput, Reason: "negative amount"},
	}
	run.Warnings = []model.Warning{
		{Code: model.WarningPeriodClamped, Message: "clamped to 12 months", PaymentID: "pay-o-1"},
	}
	require.NoError(t, store.SaveAnalysisRun(ctx, run))

	got, err := store.GetAnalysisRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "client-1", got.ClientID)
	assert.Equal(t, model.RunComplete, got.Status)
	assert.True(t, got.WindowStart.Equal(day(2023, time.January, 1)))
	assert.True(t, got.WindowEnd.IsZero())
	assert.True(t, got.ApplySelicCorrection)
	assert.Equal(t, "10", got.MinimumCreditValue.String())
	assert.Equal(t, "465.60", got.TotalsIdentified.StringFixed(2))

	require.Len(t, got.Opportunities, 3)
	assert.Equal(t, "o-3", got.Opportunities[0].ID)
	assert.Equal(t, "o-1", got.Opportunities[1].ID)
	assert.Equal(t, "o-2", got.Opportunities[2].ID)
	assert.Equal(t, "run-1", got.Opportunities[0].RunID)
	assert.Equal(t, "120.50", got.Opportunities[1].RetentionAmount.StringFixed(2))

	assert.Equal(t, run.Skipped, got.Skipped)
	assert.Equal(t, run.Warnings, got.Warnings)
}

func TestSaveAnalysisRun_Duplicate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAnalysisRun(ctx, createTestRun("run-1")))
	err := store.SaveAnalysisRun(ctx, createTestRun("run-1"))
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestSaveAnalysisRun_RejectsInvalidOpportunity(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	bad := createTestOpportunity("o-1", "sup-a", model.StatusRejected, "10.00")
	err := store.SaveAnalysisRun(ctx, createTestRun("run-1", bad))
	require.Error(t, err)

	_, err = store.GetAnalysisRun(ctx, "run-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListAnalysisRuns(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	older := createTestRun("run-old", createTestOpportunity("o-1", "sup-a", model.StatusIdentified, "10.00"))
	newer := createTestRun("run-new")
	newer.StartedAt = older.StartedAt.Add(time.Hour)
	newer.Skipped = []model.SkippedRecord{{PaymentID: "p", Code: model.SkipInvalidPayment, Reason: "tax id"}}

	require.NoError(t, store.SaveAnalysisRun(ctx, older))
	require.NoError(t, store.SaveAnalysisRun(ctx, newer))

	runs, err := store.ListAnalysisRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, 0, runs[0].Opportunities)
	assert.Equal(t, 1, runs[0].Skipped)
	assert.Equal(t, "run-old", runs[1].ID)
	assert.Equal(t, 1, runs[1].Opportunities)
	assert.Equal(t, "10.00", runs[1].TotalsIdentified.StringFixed(2))

	limited, err := store.ListAnalysisRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
