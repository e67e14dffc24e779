package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOpportunities(t *testing.T, store *SQLiteStorage) {
	t.Helper()
	run := createTestRun("run-1",
		createTestOpportunity("o-1", "sup-a", model.StatusIdentified, "100.00"),
		createTestOpportunity("o-2", "sup-b", model.StatusAnalyzing, "200.00"),
		createTestOpportunity("o-3", "sup-a", model.StatusConfirmed, "300.00"),
	)
	require.NoError(t, store.SaveAnalysisRun(context.Background(), run))
}

func TestListOpportunities(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	seedOpportunities(t, store)

	tests := []struct {
		name    string
		wantIDs []string
		filter  service.OpportunityFilter
	}{
		{name: "all", wantIDs: []string{"o-1", "o-2", "o-3"}},
		{name: "by supplier", filter: service.OpportunityFilter{SupplierID: "sup-a"}, wantIDs: []string{"o-1", "o-3"}},
		{
			name:    "by statuses",
			filter:  service.OpportunityFilter{Statuses: []model.CreditStatus{model.StatusAnalyzing, model.StatusConfirmed}},
			wantIDs: []string{"o-2", "o-3"},
		},
		{name: "by run", filter: service.OpportunityFilter{RunID: "other"}, wantIDs: []string{}},
		{name: "paged", filter: service.OpportunityFilter{Limit: 1, Offset: 1}, wantIDs: []string{"o-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListOpportunities(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, o := range got {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestUpdateOpportunity(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	seedOpportunities(t, store)

	opp, err := store.GetOpportunity(ctx, "o-1")
	require.NoError(t, err)

	opp.Status = model.StatusRejected
	opp.RejectionReason = "supplier under judicial injunction"
	require.NoError(t, store.UpdateOpportunity(ctx, model.StatusIdentified, opp))

	got, err := store.GetOpportunity(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, "supplier under judicial injunction", got.RejectionReason)

	history, err := store.GetOpportunityHistory(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.CreditStatus(""), history[0].FromStatus)
	assert.Equal(t, model.StatusIdentified, history[0].ToStatus)
	assert.Equal(t, model.StatusIdentified, history[1].FromStatus)
	assert.Equal(t, model.StatusRejected, history[1].ToStatus)
	assert.Equal(t, "supplier under judicial injunction", history[1].Reason)

	// Run totals follow the new status.
	run, err := store.GetAnalysisRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", run.TotalsIdentified.StringFixed(2))

	runs, err := store.ListAnalysisRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "500.00", runs[0].TotalsIdentified.StringFixed(2))
}

func TestUpdateOpportunity_StaleStatus(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	seedOpportunities(t, store)

	opp, err := store.GetOpportunity(ctx, "o-3")
	require.NoError(t, err)
	opp.Status = model.StatusApproved

	err = store.UpdateOpportunity(ctx, model.StatusIdentified, opp)
	require.ErrorIs(t, err, common.ErrInvalidTransition)

	got, err := store.GetOpportunity(ctx, "o-3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestUpdateOpportunity_NotFound(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	seedOpportunities(t, store)

	ghost := createTestOpportunity("ghost", "sup-a", model.StatusConfirmed, "1.00")
	err := store.UpdateOpportunity(ctx, model.StatusIdentified, &ghost)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetOpportunityHistory(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
