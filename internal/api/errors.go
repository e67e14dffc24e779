package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/lifecycle"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps domain errors onto HTTP status codes and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict, "duplicate_entry"
	case errors.Is(err, common.ErrNoRulesConfigured):
		return http.StatusUnprocessableEntity, "no_rules_configured"
	case errors.Is(err, common.ErrRateSeriesUnavailable):
		return http.StatusServiceUnavailable, "rate_series_unavailable"
	case errors.Is(err, common.ErrInvalidNumericInput):
		return http.StatusBadRequest, "invalid_numeric_input"
	case errors.Is(err, common.ErrInvalidDateRange):
		return http.StatusBadRequest, "invalid_date_range"
	case errors.Is(err, common.ErrInvalidPayment),
		errors.Is(err, common.ErrInvalidRule),
		errors.Is(err, lifecycle.ErrUnknownAction),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
