package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/credit-engine/internal/lifecycle"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewOpp(id string, status model.CreditStatus) *model.CreditOpportunity {
	return &model.CreditOpportunity{
		ID:                id,
		PaymentID:         "pay-" + id,
		SupplierID:        "acme",
		Status:            status,
		ApplicableRule:    "IN RFB 1.234/2012",
		RetentionRate:     decimal.RequireFromString("1.5"),
		RetentionAmount:   decimal.RequireFromString("15"),
		CorrectionAmount:  decimal.RequireFromString("1.80"),
		Confidence:        95,
		RetentionRequired: true,
	}
}

func TestReviewer_Review(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		status      model.CreditStatus
		wantAction  string
		wantReason  string
		wantErr     error
		notRequired bool
	}{
		{
			name:       "confirm",
			input:      "c\n",
			status:     model.StatusIdentified,
			wantAction: lifecycle.ActionConfirm,
		},
		{
			name:       "uppercase and whitespace",
			input:      "  C \n",
			status:     model.StatusIdentified,
			wantAction: lifecycle.ActionConfirm,
		},
		{
			name:       "reject asks for a reason until given",
			input:      "r\n\nduplicate payment\n",
			status:     model.StatusIdentified,
			wantAction: lifecycle.ActionReject,
			wantReason: "duplicate payment",
		},
		{
			name:       "invalid choice is re-prompted",
			input:      "x\ns\n",
			status:     model.StatusIdentified,
			wantAction: "",
		},
		{
			name:       "analyzing can be resolved",
			input:      "i\n",
			status:     model.StatusAnalyzing,
			wantAction: lifecycle.ActionResolve,
		},
		{
			name:    "confirm is not offered while analyzing",
			input:   "c\n",
			status:  model.StatusAnalyzing,
			wantErr: ErrReviewQuit,
		},
		{
			name:        "confirm is not offered without retention",
			input:       "c\n",
			status:      model.StatusIdentified,
			notRequired: true,
			wantErr:     ErrReviewQuit,
		},
		{
			name:        "reject without retention",
			input:       "r\nsupplier exempt\n",
			status:      model.StatusIdentified,
			notRequired: true,
			wantAction:  lifecycle.ActionReject,
			wantReason:  "supplier exempt",
		},
		{
			name:    "quit",
			input:   "q\n",
			status:  model.StatusIdentified,
			wantErr: ErrReviewQuit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			r := NewReviewer(strings.NewReader(tt.input), &out)

			opp := reviewOpp("o1", tt.status)
			if tt.notRequired {
				opp.RetentionRequired = false
				opp.RetentionAmount = decimal.Zero
				opp.CorrectionAmount = decimal.Zero
			}

			decision, err := r.Review(context.Background(), opp)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "o1", decision.OpportunityID)
			assert.Equal(t, tt.wantAction, decision.Action)
			assert.Equal(t, tt.wantReason, decision.Reason)
			assert.Contains(t, out.String(), "pay-o1")
		})
	}
}

func TestReviewer_SkipsTerminalStatuses(t *testing.T) {
	var out bytes.Buffer
	r := NewReviewer(strings.NewReader(""), &out)

	decision, err := r.Review(context.Background(), reviewOpp("o1", model.StatusApproved))

	require.NoError(t, err)
	assert.True(t, decision.Skipped())
	assert.Empty(t, out.String())
	assert.Equal(t, 1, r.Stats().Skipped)
}

func TestReviewer_Session(t *testing.T) {
	var out bytes.Buffer
	r := NewReviewer(strings.NewReader("c\nr\nnot ours\ns\n"), &out)
	r.SetTotal(3)

	ctx := context.Background()
	for _, id := range []string{"o1", "o2", "o3"} {
		_, err := r.Review(ctx, reviewOpp(id, model.StatusIdentified))
		require.NoError(t, err)
	}
	r.ShowCompletion()

	stats := r.Stats()
	assert.Equal(t, 3, stats.Reviewed)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 1, stats.Skipped)
	assert.True(t, decimal.RequireFromString("16.80").Equal(stats.ConfirmedCredit))
	assert.Contains(t, out.String(), "Review Complete")
	assert.Contains(t, out.String(), "R$ 16,80")
}

func TestReviewer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReviewer(strings.NewReader("c\n"), &bytes.Buffer{})
	_, err := r.Review(ctx, reviewOpp("o1", model.StatusIdentified))

	assert.ErrorIs(t, err, context.Canceled)
}
