package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

type jsonTotals struct {
	ByStatus   map[model.CreditStatus]decimal.Decimal `json:"by_status"`
	Identified decimal.Decimal                        `json:"identified"`
	Approved   decimal.Decimal                        `json:"approved"`
	Count      int                                    `json:"count"`
}

type jsonSupplier struct {
	SupplierID       string          `json:"supplier_id"`
	RetentionAmount  decimal.Decimal `json:"retention_amount"`
	CorrectionAmount decimal.Decimal `json:"correction_amount"`
	Identified       decimal.Decimal `json:"identified"`
	Approved         decimal.Decimal `json:"approved"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
	Count            int             `json:"count"`
}

type jsonOpportunity struct {
	model.CreditOpportunity
	TotalCredit decimal.Decimal `json:"total_credit"`
}

type jsonReport struct {
	GeneratedAt   time.Time             `json:"generated_at"`
	ClientID      string                `json:"client_id,omitempty"`
	RunID         string                `json:"run_id,omitempty"`
	Totals        jsonTotals            `json:"totals"`
	Suppliers     []jsonSupplier        `json:"suppliers"`
	Opportunities []jsonOpportunity     `json:"opportunities"`
	Skipped       []model.SkippedRecord `json:"skipped,omitempty"`
}

// JSONExporter writes the full report as a single JSON document.
// Money values are encoded as strings to keep their exact decimal form.
type JSONExporter struct {
	Indent string
}

// Export implements Exporter.
func (e *JSONExporter) Export(ctx context.Context, w io.Writer, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := jsonReport{
		GeneratedAt: report.Summary.GeneratedAt,
		ClientID:    report.Summary.ClientID,
		RunID:       report.Summary.RunID,
		Totals: jsonTotals{
			ByStatus:   report.Summary.Totals.ByStatus,
			Identified: report.Summary.Totals.Identified,
			Approved:   report.Summary.Totals.Approved,
			Count:      report.Summary.Totals.Count,
		},
		Suppliers:     make([]jsonSupplier, 0),
		Opportunities: make([]jsonOpportunity, 0, len(report.Opportunities)),
		Skipped:       report.Skipped,
	}

	for _, s := range report.Suppliers() {
		doc.Suppliers = append(doc.Suppliers, jsonSupplier{
			SupplierID:       s.SupplierID,
			RetentionAmount:  s.RetentionAmount,
			CorrectionAmount: s.CorrectionAmount,
			Identified:       s.Identified,
			Approved:         s.Approved,
			TotalCredit:      s.Total(),
			Count:            s.Count,
		})
	}

	for _, opp := range report.Opportunities {
		doc.Opportunities = append(doc.Opportunities, jsonOpportunity{
			CreditOpportunity: opp,
			TotalCredit:       opp.TotalCredit(),
		})
	}

	enc := json.NewEncoder(w)
	if e.Indent != "" {
		enc.SetIndent("", e.Indent)
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
