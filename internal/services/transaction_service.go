package services

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/clock"
	"budget/internal/core"
	"budget/internal/log"
)

// TransactionFilter narrows a transaction listing. Zero-valued fields are
// ignored.
type TransactionFilter struct {
	From     core.Date
	To       core.Date
	Category string
	Type     core.TransactionType
}

// TransactionStore is the persistence contract for transactions.
type TransactionStore interface {
	AddTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, id int64) (*core.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	// SumExpenses totals EXPENSE transactions dated within [from, to].
	SumExpenses(ctx context.Context, from, to core.Date) (core.Money, error)
}

// TransactionService records transactions and compares accumulated period
// spend against the current expense limit.
type TransactionService struct {
	store      TransactionStore
	categories CategoryStore
	limits     *LimitService
	notifier   Notifier
	clock      clock.Provider
}

func NewTransactionService(store TransactionStore, categories CategoryStore, limits *LimitService, notifier Notifier, clock clock.Provider) *TransactionService {
	return &TransactionService{
		store:      store,
		categories: categories,
		limits:     limits,
		notifier:   notifier,
		clock:      clock,
	}
}

// AddTransaction validates and records a transaction. Recording an expense
// while a limit is active totals the spend from the limit's start date
// through today; when the total exceeds the cap an over-limit notification
// is published. The notification is best-effort and never fails the write.
func (s *TransactionService) AddTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	today := s.clock.Today()
	if err := t.Validate(today); err != nil {
		return nil, err
	}
	if _, err := s.categories.GetCategoryByName(ctx, t.Category); err != nil {
		return nil, fmt.Errorf("category %q: %w", t.Category, err)
	}

	if err := s.store.AddTransaction(ctx, &t); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		log.FieldTransactionID, t.ID,
		log.FieldTransactionType, t.Type,
		"amount", t.Amount.Format(),
		log.FieldCategory, t.Category,
		"date", t.Date.String())

	if t.Type == core.Expense {
		s.checkLimitExceeded(ctx, today)
	}

	return &t, nil
}

func (s *TransactionService) checkLimitExceeded(ctx context.Context, today core.Date) {
	current, err := s.limits.GetCurrentLimit(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load current limit for spend check", "error", err)
		return
	}
	if current == nil || current.Expired {
		return
	}

	total, err := s.store.SumExpenses(ctx, current.Limit.StartDate, today)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to total period expenses", "error", err)
		return
	}
	if total.Cents <= current.Limit.Amount.Cents {
		return
	}

	slog.WarnContext(ctx, "Expense limit exceeded",
		"limit", current.Limit.Amount.Format(),
		"total", total.Format())

	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, limitExceededMessage(total)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish over-limit notification", "error", err)
	}
}

// GetTransaction returns a transaction by id; core.ErrNotFound when missing.
func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// ListTransactions returns transactions matching the filter, most recent first.
func (s *TransactionService) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, core.ErrInvalidType
	}
	return s.store.ListTransactions(ctx, f)
}

// DeleteTransaction removes a transaction by id.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id)
	return nil
}
