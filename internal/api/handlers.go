package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Veraticus/credit-engine/internal/engine"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err)
	}
	return nil
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Correct restates a single value with the stored rate series.
func (s *Server) Correct(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	value, err := req.OriginalValue.value(decimal.Zero)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reference, err := optionalDate("reference_date", req.ReferenceDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	asOf, err := optionalDate("as_of", req.AsOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.runner.Correct(r.Context(), value, reference, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CreateAnalysis runs and persists an analysis over the stored payments.
func (s *Server) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := engine.RunOptions{
		ClientID:        req.ClientID,
		SupplierID:      req.SupplierID,
		ApplyCorrection: req.ApplyCorrection,
	}

	var err error
	if opts.MinimumCreditValue, err = req.MinimumCreditValue.value(decimal.Zero); err != nil {
		s.writeError(w, r, err)
		return
	}
	if opts.WindowStart, err = optionalDate("window_start", req.WindowStart); err != nil {
		s.writeError(w, r, err)
		return
	}
	if opts.WindowEnd, err = optionalDate("window_end", req.WindowEnd); err != nil {
		s.writeError(w, r, err)
		return
	}
	if opts.AsOf, err = optionalDate("as_of", req.AsOf); err != nil {
		s.writeError(w, r, err)
		return
	}

	run, err := s.runner.Analyze(r.Context(), opts, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newRunResponse(run))
}

// ListAnalyses returns recent runs, newest first.
func (s *Server) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	runs, err := s.store.ListAnalysisRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []service.RunSummary{}
	}

	writeJSON(w, http.StatusOK, runs)
}

// GetAnalysis returns one run with its opportunities.
func (s *Server) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetAnalysisRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(run))
}

// ListOpportunities filters opportunities by run, supplier and status.
func (s *Server) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	filter, err := opportunityFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opps, err := s.store.ListOpportunities(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := opportunityList{
		Opportunities: make([]opportunityResponse, 0, len(opps)),
		Totals:        newTotalsResponse(model.Summarize(opps)),
	}
	for i := range opps {
		resp.Opportunities = append(resp.Opportunities, newOpportunityResponse(&opps[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func opportunityFilter(r *http.Request) (service.OpportunityFilter, error) {
	q := r.URL.Query()
	filter := service.OpportunityFilter{
		RunID:      q.Get("run_id"),
		SupplierID: q.Get("supplier_id"),
	}

	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := model.ParseStatus(part)
			if err != nil {
				return filter, fmt.Errorf("%w: %v", errBadRequest, err)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return v, nil
}

// GetOpportunity returns a single opportunity.
func (s *Server) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	opp, err := s.store.GetOpportunity(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOpportunityResponse(opp))
}

// GetOpportunityHistory returns the audit trail of an opportunity.
func (s *Server) GetOpportunityHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.GetOpportunityHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// TransitionOpportunity applies a lifecycle action such as confirm or reject.
func (s *Server) TransitionOpportunity(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	opp, err := s.runner.Transition(r.Context(), mux.Vars(r)["id"], req.Action, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOpportunityResponse(opp))
}

// ListRules returns the configured retention rules in match order.
func (s *Server) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.GetRules(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rules == nil {
		rules = []model.RetentionRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}
