package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Veraticus/credit-engine/internal/model"
)

var csvHeader = []string{
	"id",
	"run_id",
	"payment_id",
	"supplier_id",
	"applicable_rule",
	"retention_rate",
	"retention_amount",
	"correction_amount",
	"total_credit",
	"status",
	"confidence",
	"identification_date",
	"rejection_reason",
}

// CSVExporter writes one row per opportunity.
type CSVExporter struct {
	// Comma overrides the field delimiter; zero means ','.
	Comma rune
}

// Export implements Exporter.
func (e *CSVExporter) Export(ctx context.Context, w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)
	if e.Comma != 0 {
		cw.Comma = e.Comma
	}

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := range report.Opportunities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(csvRecord(&report.Opportunities[i])); err != nil {
			return fmt.Errorf("failed to write opportunity %s: %w", report.Opportunities[i].ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvRecord(opp *model.CreditOpportunity) []string {
	return []string{
		opp.ID,
		opp.RunID,
		opp.PaymentID,
		opp.SupplierID,
		opp.ApplicableRule,
		opp.RetentionRate.String(),
		opp.RetentionAmount.StringFixed(2),
		opp.CorrectionAmount.StringFixed(2),
		opp.TotalCredit().StringFixed(2),
		string(opp.Status),
		strconv.Itoa(opp.Confidence),
		opp.IdentificationDate.Format("2006-01-02"),
		opp.RejectionReason,
	}
}
