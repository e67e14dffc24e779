package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/credit-engine/internal/ingest"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

// flexAmount accepts a JSON number or a string in either decimal notation.
type flexAmount string

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = flexAmount(s)
		return nil
	}
	*a = flexAmount(data)
	return nil
}

// value returns fallback when the amount was omitted.
func (a flexAmount) value(fallback decimal.Decimal) (decimal.Decimal, error) {
	if a == "" {
		return fallback, nil
	}
	return ingest.ParseDecimal(string(a))
}

func optionalDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := ingest.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

type correctionRequest struct {
	OriginalValue flexAmount `json:"original_value"`
	ReferenceDate string     `json:"reference_date"`
	AsOf          string     `json:"as_of"`
}

type analysisRequest struct {
	ClientID           string     `json:"client_id"`
	SupplierID         string     `json:"supplier_id"`
	WindowStart        string     `json:"window_start"`
	WindowEnd          string     `json:"window_end"`
	AsOf               string     `json:"as_of"`
	MinimumCreditValue flexAmount `json:"minimum_credit_value"`
	ApplyCorrection    bool       `json:"apply_correction"`
}

type transitionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type opportunityResponse struct {
	model.CreditOpportunity
	TotalCredit decimal.Decimal `json:"total_credit"`
}

func newOpportunityResponse(opp *model.CreditOpportunity) opportunityResponse {
	return opportunityResponse{CreditOpportunity: *opp, TotalCredit: opp.TotalCredit()}
}

// runResponse shadows the run's opportunities so each carries its total credit.
type runResponse struct {
	*model.AnalysisRun
	Opportunities []opportunityResponse `json:"opportunities"`
}

func newRunResponse(run *model.AnalysisRun) runResponse {
	resp := runResponse{
		AnalysisRun:   run,
		Opportunities: make([]opportunityResponse, 0, len(run.Opportunities)),
	}
	for i := range run.Opportunities {
		resp.Opportunities = append(resp.Opportunities, newOpportunityResponse(&run.Opportunities[i]))
	}
	return resp
}

type opportunityList struct {
	Opportunities []opportunityResponse `json:"opportunities"`
	Totals        totalsResponse        `json:"totals"`
}

type totalsResponse struct {
	ByStatus   map[model.CreditStatus]decimal.Decimal `json:"by_status"`
	Identified decimal.Decimal                        `json:"identified"`
	Approved   decimal.Decimal                        `json:"approved"`
	Count      int                                    `json:"count"`
}

func newTotalsResponse(t model.Totals) totalsResponse {
	return totalsResponse{
		ByStatus:   t.ByStatus,
		Identified: t.Identified,
		Approved:   t.Approved,
		Count:      t.Count,
	}
}
