package http

import (
	"net/http"
	"strconv"

	"budget/internal/core"
	"budget/internal/services"
)

type transactionRequest struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

func transactionToResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Date:        t.Date.String(),
		Amount:      t.Amount.Format(),
		Type:        string(t.Type),
		Category:    t.Category,
		Description: t.Description,
	}
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	var date core.Date
	if req.Date != "" {
		var err error
		date, err = core.ParseDate(req.Date)
		if err != nil {
			badRequest(w, "invalid date "+strconv.Quote(req.Date))
			return
		}
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	saved, err := s.transactions.AddTransaction(r.Context(), core.Transaction{
		Date:        date,
		Amount:      core.Money{Cents: cents},
		Type:        core.TransactionType(req.Type),
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionToResponse(*saved))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	filter := services.TransactionFilter{
		From:     from,
		To:       to,
		Category: r.URL.Query().Get("category"),
		Type:     core.TransactionType(r.URL.Query().Get("type")),
	}

	transactions, err := s.transactions.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, transactionToResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	t, err := s.transactions.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionToResponse(*t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	if err := s.transactions.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportResponse struct {
	From                       string               `json:"from"`
	To                         string               `json:"to"`
	IncomeTotal                string               `json:"income_total"`
	ExpenseTotal               string               `json:"expense_total"`
	IncomeMax                  string               `json:"income_max"`
	IncomeMin                  string               `json:"income_min"`
	ExpenseMax                 string               `json:"expense_max"`
	ExpenseMin                 string               `json:"expense_min"`
	TotalDays                  int64                `json:"total_days"`
	DaysWithTransactions       int64                `json:"days_with_transactions"`
	AverageExpensePerDay       string               `json:"average_expense_per_day"`
	AverageExpensePerActiveDay string               `json:"average_expense_per_active_day"`
	ByCategory                 []categoryTotalEntry `json:"by_category"`
}

type categoryTotalEntry struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	report, err := s.transactions.GenerateReport(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := reportResponse{
		From:                       report.From.String(),
		To:                         report.To.String(),
		IncomeTotal:                report.IncomeTotal.Format(),
		ExpenseTotal:               report.ExpenseTotal.Format(),
		IncomeMax:                  report.IncomeMax.Format(),
		IncomeMin:                  report.IncomeMin.Format(),
		ExpenseMax:                 report.ExpenseMax.Format(),
		ExpenseMin:                 report.ExpenseMin.Format(),
		TotalDays:                  report.TotalDays,
		DaysWithTransactions:       report.DaysWithTransactions,
		AverageExpensePerDay:       report.AverageExpensePerDay.Format(),
		AverageExpensePerActiveDay: report.AverageExpensePerActiveDay.Format(),
		ByCategory:                 make([]categoryTotalEntry, 0, len(report.ByCategory)),
	}
	for _, ct := range report.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryTotalEntry{
			Name:   ct.Name,
			Amount: ct.Amount.Format(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
