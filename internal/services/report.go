package services

import (
	"context"
	"fmt"

	"budget/internal/core"
)

// CategoryTotal is a per-category sum within a report range.
type CategoryTotal struct {
	Name   string
	Amount core.Money
}

// Report summarizes transactions over an inclusive date range.
type Report struct {
	From core.Date
	To   core.Date

	Transactions []core.Transaction

	IncomeTotal  core.Money
	ExpenseTotal core.Money
	IncomeMax    core.Money
	IncomeMin    core.Money
	ExpenseMax   core.Money
	ExpenseMin   core.Money

	TotalDays            int64
	DaysWithTransactions int64

	// Averages use half-up rounding to whole cents.
	AverageExpensePerDay       core.Money
	AverageExpensePerActiveDay core.Money

	ByCategory []CategoryTotal
}

// GenerateReport builds the date-range report: per-type totals and extremes,
// per-category totals, and daily expense averages over both calendar days and
// days that actually saw transactions.
func (s *TransactionService) GenerateReport(ctx context.Context, from, to core.Date) (*Report, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, core.ErrInvalidDate
	}

	transactions, err := s.store.ListTransactions(ctx, TransactionFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	r := &Report{
		From:         from,
		To:           to,
		Transactions: transactions,
		TotalDays:    int64(to.Time.Sub(from.Time).Hours()/24) + 1,
	}

	days := make(map[string]struct{})
	byCategory := make(map[string]int64)
	categoryOrder := make([]string, 0)

	for _, t := range transactions {
		days[t.Date.String()] = struct{}{}
		if _, seen := byCategory[t.Category]; !seen {
			categoryOrder = append(categoryOrder, t.Category)
		}
		byCategory[t.Category] += t.Amount.Cents

		switch t.Type {
		case core.Income:
			r.IncomeTotal.Cents += t.Amount.Cents
			if r.IncomeMax.Cents < t.Amount.Cents {
				r.IncomeMax = t.Amount
			}
			if r.IncomeMin.Cents == 0 || t.Amount.Cents < r.IncomeMin.Cents {
				r.IncomeMin = t.Amount
			}
		case core.Expense:
			r.ExpenseTotal.Cents += t.Amount.Cents
			if r.ExpenseMax.Cents < t.Amount.Cents {
				r.ExpenseMax = t.Amount
			}
			if r.ExpenseMin.Cents == 0 || t.Amount.Cents < r.ExpenseMin.Cents {
				r.ExpenseMin = t.Amount
			}
		}
	}

	r.DaysWithTransactions = int64(len(days))
	r.AverageExpensePerDay = divideHalfUp(r.ExpenseTotal.Cents, r.TotalDays)
	r.AverageExpensePerActiveDay = divideHalfUp(r.ExpenseTotal.Cents, r.DaysWithTransactions)

	for _, name := range categoryOrder {
		r.ByCategory = append(r.ByCategory, CategoryTotal{
			Name:   name,
			Amount: core.Money{Cents: byCategory[name]},
		})
	}

	return r, nil
}

// divideHalfUp divides cents by a day count with half-up rounding; a zero
// divisor yields zero rather than failing (empty ranges are a valid report).
func divideHalfUp(cents, days int64) core.Money {
	if days <= 0 {
		return core.Money{}
	}
	return core.Money{Cents: (cents + days/2) / days}
}
