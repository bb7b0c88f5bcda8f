package http

import (
	"net/http"

	"budget/internal/core"
)

type limitRequest struct {
	Amount    string `json:"amount"`
	Period    string `json:"period"`
	AutoRenew bool   `json:"auto_renew"`
}

type limitResponse struct {
	ID        int64  `json:"id"`
	Amount    string `json:"amount"`
	Period    string `json:"period"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	AutoRenew bool   `json:"auto_renew"`
	Expired   bool   `json:"expired,omitempty"`
}

func limitToResponse(l core.Limit, expired bool) limitResponse {
	return limitResponse{
		ID:        l.ID,
		Amount:    l.Amount.Format(),
		Period:    string(l.Period),
		StartDate: l.StartDate.String(),
		EndDate:   l.EndDate.String(),
		AutoRenew: l.AutoRenew,
		Expired:   expired,
	}
}

func parseLimitRequest(r *http.Request) (core.Money, core.Period, bool, error) {
	var req limitRequest
	if err := decodeJSON(r, &req); err != nil {
		return core.Money{}, "", false, err
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Money{}, "", false, err
	}
	return core.Money{Cents: cents}, core.Period(req.Period), req.AutoRenew, nil
}

func (s *Server) handleGetLimit(w http.ResponseWriter, r *http.Request) {
	current, err := s.limits.GetCurrentLimit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if current == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no limit set"})
		return
	}
	writeJSON(w, http.StatusOK, limitToResponse(current.Limit, current.Expired))
}

func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	amount, period, autoRenew, err := parseLimitRequest(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	limit, err := s.limits.SetOrUpdateLimit(r.Context(), amount, period, autoRenew)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limitToResponse(*limit, false))
}

func (s *Server) handleRemoveLimit(w http.ResponseWriter, r *http.Request) {
	if err := s.limits.RemoveLimit(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFutureLimit(w http.ResponseWriter, r *http.Request) {
	future, err := s.limits.GetFutureLimit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if future == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no future limit set"})
		return
	}
	writeJSON(w, http.StatusOK, limitToResponse(*future, false))
}

func (s *Server) handleSetFutureLimit(w http.ResponseWriter, r *http.Request) {
	amount, period, autoRenew, err := parseLimitRequest(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	future, err := s.limits.SetFutureLimitAmount(r.Context(), amount, period, autoRenew)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, limitToResponse(*future, false))
}

func (s *Server) handleReplaceFutureLimit(w http.ResponseWriter, r *http.Request) {
	amount, period, autoRenew, err := parseLimitRequest(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	future, err := s.limits.ReplaceFutureLimit(r.Context(), amount, period, autoRenew)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limitToResponse(*future, false))
}

// handleCheckLimit triggers the daily reset check on demand, in addition to
// the limit worker's schedule.
func (s *Server) handleCheckLimit(w http.ResponseWriter, r *http.Request) {
	if err := s.limits.CheckAndResetLimitIfNeeded(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	current, err := s.limits.GetCurrentLimit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if current == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, limitToResponse(current.Limit, current.Expired))
}
