package core

import (
	"errors"
	"strings"
)

const (
	Weekly     Period = "WEEKLY"
	Monthly    Period = "MONTHLY"
	Indefinite Period = "INDEFINITE"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

type (
	// Period is the recurrence kind governing how long a spending limit
	// stays active.
	Period string

	// TransactionType distinguishes money coming in from money going out.
	TransactionType string

	// Limit is a spending cap over a recurring period. At most one limit is
	// current (its date range contains today) and at most one is future
	// (its start date is after today).
	Limit struct {
		ID        int64
		Amount    Money
		Period    Period
		StartDate Date
		EndDate   Date // zero if and only if Period == Indefinite
		AutoRenew bool
	}

	// Transaction is a single dated income or expense entry.
	Transaction struct {
		ID          int64
		Date        Date
		Amount      Money
		Type        TransactionType
		Category    string
		Description string
	}

	// Category labels transactions and carries the type new transactions
	// default to.
	Category struct {
		ID          int64
		Name        string
		DefaultType TransactionType
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidDate        = errors.New("invalid date")
	ErrFutureDate         = errors.New("transaction date is in the future")
	ErrEmptyCategory      = errors.New("empty category")
	ErrDescriptionTooLong = errors.New("description too long (max 255 characters)")
	ErrNotFound           = errors.New("not found")
	ErrCategoryInUse      = errors.New("category is referenced by transactions")

	// ErrNoCurrentLimit is the invalid-state error: a future limit's start
	// is derived from the current limit's end, so there is no valid
	// "future of nothing".
	ErrNoCurrentLimit = errors.New("no current limit")
)

// Valid reports whether p is one of the known period kinds.
func (p Period) Valid() bool {
	switch p {
	case Weekly, Monthly, Indefinite:
		return true
	}
	return false
}

// Title returns the user-facing period label used in notification texts.
func (p Period) Title() string {
	switch p {
	case Weekly:
		return "Неделя"
	case Monthly:
		return "Месяц"
	case Indefinite:
		return "Бессрочно"
	}
	return string(p)
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// SetPeriod sets the limit's period and start date and recomputes the end
// date from them.
func (l *Limit) SetPeriod(p Period, start Date) {
	l.Period = p
	l.StartDate = start
	l.EndDate = PeriodEndDate(start, p)
}

// Contains reports whether the limit's date range contains d. A limit with
// no end date (indefinite) contains every date from its start onward.
func (l Limit) Contains(d Date) bool {
	if l.StartDate.IsZero() || d.Before(l.StartDate) {
		return false
	}
	return l.EndDate.IsZero() || !d.After(l.EndDate)
}

func (l Limit) Validate() error {
	if err := l.Amount.Validate(); err != nil {
		return err
	}
	if !l.Period.Valid() {
		return ErrInvalidPeriod
	}
	if l.StartDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks the transaction against the given current date (the date
// may not be in the future).
func (t Transaction) Validate(today Date) error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Date.After(today) {
		return ErrFutureDate
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 255 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	if !c.DefaultType.Valid() {
		return ErrInvalidType
	}
	return nil
}
