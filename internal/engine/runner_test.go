package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/credit-engine/internal/classifier"
	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/lifecycle"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/rates"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/Veraticus/credit-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, opts testutil.TestDBOptions) (*Runner, service.Storage) {
	t.Helper()
	db := testutil.SetupTestDBWithOptions(t, opts)

	seq := 0
	config := Config{
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
		Now: func() time.Time { return fixedNow },
	}
	return NewRunnerWithConfig(db.Storage, classifier.New(), rates.MethodSimple, config), db.Storage
}

func TestRunner_AnalyzeRequiresRules(t *testing.T) {
	runner, _ := newTestRunner(t, testutil.TestDBOptions{Payments: testutil.Payments(2, "1000.00")})

	_, err := runner.Analyze(context.Background(), RunOptions{}, nil)

	require.ErrorIs(t, err, common.ErrNoRulesConfigured)
	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
}

func TestRunner_AnalyzePersistsRun(t *testing.T) {
	payments := append(testutil.Payments(3, "1000.00"),
		testutil.NewPayment("goods").Goods().Build(),
		testutil.NewPayment("other").Supplier("acme").Amount("2000.00").Build(),
	)
	runner, store := newTestRunner(t, testutil.TestDBOptions{
		Rules:    testutil.StandardRules(),
		Payments: payments,
	})

	var progress []int
	run, err := runner.Analyze(context.Background(), RunOptions{ClientID: "client-1"}, func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunComplete, run.Status)
	assert.Equal(t, 5, run.Total)
	assert.Len(t, run.Opportunities, 5)
	assert.Equal(t, 1, run.NotApplicable)
	assert.False(t, run.Opportunities[3].RetentionRequired)
	assert.Equal(t, "no retention on goods", run.Opportunities[3].ApplicableRule)
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.True(t, testutil.Dec("75.00").Equal(run.TotalsIdentified), run.TotalsIdentified.String())

	saved, err := store.GetAnalysisRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "client-1", saved.ClientID)
	assert.Len(t, saved.Opportunities, 5)
	assert.False(t, saved.Opportunities[3].RetentionRequired)
	assert.True(t, run.TotalsIdentified.Equal(saved.TotalsIdentified))
}

func TestRunner_AnalyzeBySupplier(t *testing.T) {
	runner, _ := newTestRunner(t, testutil.TestDBOptions{
		Rules: testutil.StandardRules(),
		Payments: append(testutil.Payments(2, "1000.00"),
			testutil.NewPayment("x").Supplier("acme").Build()),
	})

	run, err := runner.Analyze(context.Background(), RunOptions{SupplierID: "acme"}, nil)
	require.NoError(t, err)

	require.Len(t, run.Opportunities, 1)
	assert.Equal(t, "x", run.Opportunities[0].PaymentID)
}

func TestRunner_AnalyzeCorrection(t *testing.T) {
	t.Run("without rates", func(t *testing.T) {
		runner, _ := newTestRunner(t, testutil.TestDBOptions{
			Rules:    testutil.StandardRules(),
			Payments: testutil.Payments(1, "1000.00"),
		})

		_, err := runner.Analyze(context.Background(), RunOptions{ApplyCorrection: true}, nil)
		assert.ErrorIs(t, err, common.ErrRateSeriesUnavailable)
	})

	t.Run("with stored rates", func(t *testing.T) {
		runner, _ := newTestRunner(t, testutil.TestDBOptions{
			Rules:    testutil.StandardRules(),
			Payments: testutil.Payments(1, "1000.00"),
			Rates:    testutil.FlatRates(testutil.Date(2023, time.December, 1), 24, "1"),
		})

		run, err := runner.Analyze(context.Background(), RunOptions{
			ApplyCorrection: true,
			AsOf:            testutil.Date(2024, time.January, 1),
		}, nil)
		require.NoError(t, err)

		require.Len(t, run.Opportunities, 1)
		opp := run.Opportunities[0]
		assert.True(t, testutil.Dec("15.00").Equal(opp.RetentionAmount))
		assert.True(t, opp.CorrectionAmount.IsPositive())
	})
}

func TestRunner_AnalyzeSavesCancelledRun(t *testing.T) {
	runner, store := newTestRunner(t, testutil.TestDBOptions{
		Rules:    testutil.StandardRules(),
		Payments: testutil.Payments(4, "1000.00"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run, err := runner.Analyze(ctx, RunOptions{}, func(p int) {
		if p >= 50 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunCancelled, run.Status)
	assert.Equal(t, 2, run.Processed)

	saved, err := store.GetAnalysisRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunCancelled, saved.Status)
	assert.Len(t, saved.Opportunities, 2)
}

func TestRunner_Transition(t *testing.T) {
	runner, store := newTestRunner(t, testutil.TestDBOptions{
		Rules:    testutil.StandardRules(),
		Payments: testutil.Payments(1, "1000.00"),
	})
	ctx := context.Background()

	run, err := runner.Analyze(ctx, RunOptions{}, nil)
	require.NoError(t, err)
	require.Len(t, run.Opportunities, 1)
	id := run.Opportunities[0].ID
	require.Equal(t, model.StatusIdentified, run.Opportunities[0].Status)

	confirmed, err := runner.Transition(ctx, id, lifecycle.ActionConfirm, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)

	_, err = runner.Transition(ctx, id, lifecycle.ActionReject, "duplicate")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = runner.Transition(ctx, id, "pay", "")
	assert.ErrorIs(t, err, lifecycle.ErrUnknownAction)

	_, err = runner.Transition(ctx, "missing", lifecycle.ActionConfirm, "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	approved, err := runner.Transition(ctx, id, lifecycle.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)

	history, err := store.GetOpportunityHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.StatusApproved, history[2].ToStatus)

	saved, err := store.GetAnalysisRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, saved.TotalsIdentified.IsZero())
	assert.True(t, testutil.Dec("15.00").Equal(saved.TotalsApproved))
}

func TestRunner_TransitionNotRequired(t *testing.T) {
	runner, _ := newTestRunner(t, testutil.TestDBOptions{
		Rules:    testutil.StandardRules(),
		Payments: []model.PaymentRecord{testutil.NewPayment("exempt").Exempt().Build()},
	})
	ctx := context.Background()

	run, err := runner.Analyze(ctx, RunOptions{}, nil)
	require.NoError(t, err)
	require.Len(t, run.Opportunities, 1)
	opp := run.Opportunities[0]
	require.False(t, opp.RetentionRequired)
	require.Equal(t, model.StatusIdentified, opp.Status)

	_, err = runner.Transition(ctx, opp.ID, lifecycle.ActionConfirm, "")
	require.ErrorIs(t, err, common.ErrInvalidTransition)

	rejected, err := runner.Transition(ctx, opp.ID, lifecycle.ActionReject, "supplier exempt")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
}

func TestRunner_Correct(t *testing.T) {
	runner, _ := newTestRunner(t, testutil.TestDBOptions{
		Rates: testutil.FlatRates(testutil.Date(2023, time.December, 1), 12, "1"),
	})

	result, err := runner.Correct(context.Background(), testutil.Dec("1000"),
		testutil.Date(2023, time.January, 1), time.Time{})
	require.NoError(t, err)

	// fixedNow is 2024-01-01: 365 days is 12 whole months.
	assert.Equal(t, 12, result.MonthsElapsed)
	assert.True(t, result.CorrectedValue.GreaterThan(result.OriginalValue))

	empty, _ := newTestRunner(t, testutil.TestDBOptions{})
	_, err = empty.Correct(context.Background(), testutil.Dec("1000"),
		testutil.Date(2023, time.January, 1), time.Time{})
	assert.ErrorIs(t, err, common.ErrRateSeriesUnavailable)
}
