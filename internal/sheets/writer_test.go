package sheets

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportFixture() ([]model.CreditOpportunity, *service.ReportSummary) {
	identified := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	opps := []model.CreditOpportunity{
		{
			ID:                 "o1",
			PaymentID:          "p1",
			SupplierID:         "s1",
			Status:             model.StatusIdentified,
			ApplicableRule:     "Lei 10.833/2003, art. 30",
			RetentionRate:      decimal.RequireFromString("4.65"),
			RetentionAmount:    decimal.RequireFromString("100"),
			CorrectionAmount:   decimal.RequireFromString("10"),
			Confidence:         90,
			IdentificationDate: identified,
		},
		{
			ID:                 "o2",
			PaymentID:          "p2",
			SupplierID:         "s2",
			Status:             model.StatusApproved,
			RetentionRate:      decimal.RequireFromString("1.5"),
			RetentionAmount:    decimal.RequireFromString("200"),
			Confidence:         100,
			IdentificationDate: identified,
		},
		{
			ID:                 "o3",
			PaymentID:          "p3",
			SupplierID:         "s1",
			Status:             model.StatusRejected,
			RejectionReason:    "duplicate",
			RetentionRate:      decimal.RequireFromString("11"),
			RetentionAmount:    decimal.RequireFromString("50"),
			Confidence:         60,
			IdentificationDate: identified,
		},
	}

	summary := &service.ReportSummary{
		GeneratedAt: identified,
		ClientID:    "acme",
		RunID:       "run-1",
		Totals:      model.Summarize(opps),
	}
	return opps, summary
}

func TestWriter_prepareReportData(t *testing.T) {
	opps, summary := reportFixture()

	layout := prepareReportData(opps, summary, time.UTC)
	values := layout.Values

	assert.Equal(t, []any{"Tax Credit Report", "10/03/2024 12:00"}, values[0])
	assert.Equal(t, []any{"Client", "acme"}, values[1])
	assert.Equal(t, []any{"Run", "run-1"}, values[2])

	// Summary totals, then per status in lifecycle order.
	assert.Equal(t, []any{"Summary"}, values[4])
	assert.Equal(t, []any{"Identified", 110.0}, values[5])
	assert.Equal(t, []any{"Approved", 200.0}, values[6])
	assert.Equal(t, []any{"identified", 110.0}, values[7])
	assert.Equal(t, []any{"rejected", 50.0}, values[8])
	assert.Equal(t, []any{"approved", 200.0}, values[9])
	assert.Equal(t, []any{"Opportunities", 3}, values[10])

	// Suppliers sorted by total credit, rejected excluded.
	assert.Equal(t, []any{"Suppliers"}, values[12])
	assert.Equal(t, "s2", values[14][0])
	assert.Equal(t, 200.0, values[14][6])
	assert.Equal(t, "s1", values[15][0])
	assert.Equal(t, 1, values[15][1])
	assert.Equal(t, 110.0, values[15][6])

	// Details keep input order.
	assert.Equal(t, 18, layout.DetailsRow)
	assert.Equal(t, detailHeaders, values[18])
	require.Len(t, values, 22)
	assert.Equal(t, []any{
		"p1", "s1", "Lei 10.833/2003, art. 30", "4.65",
		100.0, 10.0, 110.0, "identified", 90, "2024-03-10", "",
	}, values[19])
	assert.Equal(t, "p3", values[21][0])
	assert.Equal(t, "duplicate", values[21][10])

	assert.Equal(t, []int{4, 12, 17}, layout.Headings)
	assert.Equal(t, []cellRange{
		{StartRow: 5, EndRow: 10, StartCol: 1, EndCol: 2},
		{StartRow: 14, EndRow: 16, StartCol: 2, EndCol: 7},
		{StartRow: 19, EndRow: 22, StartCol: 4, EndCol: 7},
	}, layout.Currency)
}

func TestWriter_prepareReportDataEmpty(t *testing.T) {
	summary := &service.ReportSummary{
		GeneratedAt: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Totals:      model.Summarize(nil),
	}

	layout := prepareReportData(nil, summary, time.UTC)

	assert.Equal(t, []any{"Identified", 0.0}, layout.Values[5])
	assert.Equal(t, detailHeaders, layout.Values[layout.DetailsRow])
	assert.Len(t, layout.Values, layout.DetailsRow+1)
	// Empty supplier and detail sections carry no currency ranges.
	assert.Len(t, layout.Currency, 1)
}

func TestWriter_prepareReportDataTimeZone(t *testing.T) {
	opps, summary := reportFixture()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	layout := prepareReportData(opps, summary, loc)

	assert.Equal(t, "10/03/2024 09:00", layout.Values[0][1])
}

func TestWriter_formattingRequests(t *testing.T) {
	opps, summary := reportFixture()
	w := &Writer{config: DefaultConfig(), logger: slog.Default()}

	requests := w.formattingRequests(prepareReportData(opps, summary, time.UTC))

	// Title, three headings, detail header, three currency blocks, resize.
	require.Len(t, requests, 9)
	currency := requests[5].RepeatCell
	require.NotNil(t, currency)
	assert.Equal(t, `"R$" #,##0.00`, currency.Cell.UserEnteredFormat.NumberFormat.Pattern)
	assert.Equal(t, int64(5), currency.Range.StartRowIndex)
	assert.NotNil(t, requests[8].AutoResizeDimensions)
}

func TestWriter_location(t *testing.T) {
	w := &Writer{config: Config{TimeZone: "Nowhere/Special"}, logger: slog.Default()}
	assert.Equal(t, time.UTC, w.location())

	w.config.TimeZone = ""
	assert.Equal(t, time.UTC, w.location())
}

func TestMockWriter(t *testing.T) {
	opps, summary := reportFixture()
	mock := NewMockWriter()
	boom := errors.New("quota exceeded")
	mock.WriteFunc = func(_ context.Context, _ []model.CreditOpportunity, _ *service.ReportSummary) error {
		return boom
	}

	err := mock.Write(context.Background(), opps, summary)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mock.WriteCallCount)
	assert.Same(t, summary, mock.LastSummary)
	require.Len(t, mock.WriteCalls, 1)
	assert.Equal(t, boom, mock.WriteCalls[0].Error)

	mock.Reset()
	assert.Zero(t, mock.WriteCallCount)
	assert.Empty(t, mock.WriteCalls)
}
