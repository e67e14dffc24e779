package engine

import (
	"sort"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

// SupplierTotal aggregates the opportunities of one supplier.
type SupplierTotal struct {
	SupplierID       string
	RetentionAmount  decimal.Decimal
	CorrectionAmount decimal.Decimal
	Identified       decimal.Decimal
	Approved         decimal.Decimal
	Count            int
}

// Total is the retention plus correction across the supplier's opportunities.
func (s SupplierTotal) Total() decimal.Decimal {
	return s.RetentionAmount.Add(s.CorrectionAmount)
}

// SupplierSummary groups opportunities by supplier, largest total credit first.
// Rejected opportunities are left out.
func SupplierSummary(opps []model.CreditOpportunity) []SupplierTotal {
	groups := make(map[string]*SupplierTotal)
	order := make([]string, 0)

	for i := range opps {
		opp := &opps[i]
		if opp.Status == model.StatusRejected {
			continue
		}

		group, ok := groups[opp.SupplierID]
		if !ok {
			group = &SupplierTotal{SupplierID: opp.SupplierID}
			groups[opp.SupplierID] = group
			order = append(order, opp.SupplierID)
		}

		credit := opp.TotalCredit()
		group.RetentionAmount = group.RetentionAmount.Add(opp.RetentionAmount)
		group.CorrectionAmount = group.CorrectionAmount.Add(opp.CorrectionAmount)
		if opp.Status.CountsAsIdentified() {
			group.Identified = group.Identified.Add(credit)
		}
		if opp.Status.CountsAsApproved() {
			group.Approved = group.Approved.Add(credit)
		}
		group.Count++
	}

	summary := make([]SupplierTotal, len(order))
	for i, id := range order {
		summary[i] = *groups[id]
	}

	// Stable so suppliers with equal totals keep first-seen order.
	sort.SliceStable(summary, func(i, j int) bool {
		return summary[i].Total().GreaterThan(summary[j].Total())
	})

	return summary
}
