// Package services provides business logic and orchestration services.
//
// This file implements the expense limit lifecycle engine: resolving the
// current and future limit, the daily reset check with its transition rules
// (activate a future limit, auto-renew in place, or expire and delete), and
// the notifications each transition emits.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"budget/internal/clock"
	"budget/internal/core"
	"budget/internal/log"
)

// LimitStore is the persistence contract the engine consumes. The list query
// returns every limit ordered by start date ascending; partitioning into
// current and future happens in the engine, not the store.
type LimitStore interface {
	ListCurrentAndFutureLimits(ctx context.Context, asOf core.Date) ([]core.Limit, error)
	// SaveLimit inserts the limit when its ID is zero (assigning one) and
	// updates it in place otherwise.
	SaveLimit(ctx context.Context, l *core.Limit) error
	DeleteLimit(ctx context.Context, id int64) error
}

// Notifier accepts a formatted message for asynchronous delivery. The engine
// never blocks on or observes delivery outcome.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// CurrentLimit couples a limit with whether its period has already ended.
// An expired result is the most recently started limit kept for reporting;
// callers comparing spend against the cap must check the flag.
type CurrentLimit struct {
	Limit   core.Limit
	Expired bool
}

// LimitService is the expense limit lifecycle engine and read-side facade.
// All operations are serialized by a single mutex so reads never observe an
// in-progress transition; the reset check is additionally collapsed through
// a singleflight group so overlapping triggers produce one transition.
type LimitService struct {
	store    LimitStore
	notifier Notifier
	clock    clock.Provider

	mu    sync.Mutex
	reset singleflight.Group
}

func NewLimitService(store LimitStore, notifier Notifier, clock clock.Provider) *LimitService {
	return &LimitService{
		store:    store,
		notifier: notifier,
		clock:    clock,
	}
}

// SetOrUpdateLimit mutates the current limit in place (new amount, period and
// auto-renew flag, start reset to today) or creates one starting today when
// none exists. No notification is sent.
func (s *LimitService) SetOrUpdateLimit(ctx context.Context, amount core.Money, period core.Period, autoRenew bool) (*core.Limit, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, core.ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	current, _, err := s.partition(ctx, today)
	if err != nil {
		return nil, err
	}

	limit := current
	if limit == nil {
		limit = &core.Limit{}
	}
	limit.Amount = amount
	limit.AutoRenew = autoRenew
	limit.SetPeriod(period, today)

	if err := s.store.SaveLimit(ctx, limit); err != nil {
		return nil, fmt.Errorf("save limit: %w", err)
	}

	slog.InfoContext(ctx, "Limit set",
		log.FieldLimitID, limit.ID,
		"amount", limit.Amount.Format(),
		log.FieldPeriod, limit.Period,
		log.FieldStartDate, limit.StartDate.String(),
		log.FieldEndDate, limit.EndDate.String(),
		log.FieldAutoRenew, limit.AutoRenew)

	return limit, nil
}

// GetCurrentLimit returns the limit whose date range contains today. When no
// limit is active it falls back to the most recently started one with the
// Expired flag set, so an elapsed period stays reportable until it is renewed
// or removed. Returns nil when no limit exists at all. Read-only: no
// transition is triggered here.
func (s *LimitService) GetCurrentLimit(ctx context.Context) (*CurrentLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	current, _, err := s.partition(ctx, today)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	return &CurrentLimit{
		Limit:   *current,
		Expired: !current.Contains(today),
	}, nil
}

// GetFutureLimit returns the limit whose start date is after today, or nil.
func (s *LimitService) GetFutureLimit(ctx context.Context) (*core.Limit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, future, err := s.partition(ctx, s.clock.Today())
	if err != nil {
		return nil, err
	}
	return future, nil
}

// SetFutureLimitAmount pre-declares a limit that takes effect the day after
// the current one ends. Fails with core.ErrNoCurrentLimit when no current
// limit exists or the current limit is indefinite: the future period's start
// is derived from the current period's end. Declaring a second future limit
// replaces the pending one rather than accumulating records.
func (s *LimitService) SetFutureLimitAmount(ctx context.Context, amount core.Money, period core.Period, autoRenew bool) (*core.Limit, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, core.ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setFutureLocked(ctx, amount, period, autoRenew)
}

// ReplaceFutureLimit overwrites a pending future limit's amount, period and
// auto-renew flag in place, keeping its start date and recomputing its end.
// When no future limit exists it behaves as SetFutureLimitAmount.
func (s *LimitService) ReplaceFutureLimit(ctx context.Context, amount core.Money, period core.Period, autoRenew bool) (*core.Limit, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, core.ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	_, future, err := s.partition(ctx, today)
	if err != nil {
		return nil, err
	}
	if future == nil {
		return s.setFutureLocked(ctx, amount, period, autoRenew)
	}

	future.Amount = amount
	future.AutoRenew = autoRenew
	future.SetPeriod(period, future.StartDate)

	if err := s.store.SaveLimit(ctx, future); err != nil {
		return nil, fmt.Errorf("save future limit: %w", err)
	}

	slog.InfoContext(ctx, "Future limit replaced",
		log.FieldLimitID, future.ID,
		"amount", future.Amount.Format(),
		log.FieldPeriod, future.Period,
		log.FieldStartDate, future.StartDate.String())

	return future, nil
}

func (s *LimitService) setFutureLocked(ctx context.Context, amount core.Money, period core.Period, autoRenew bool) (*core.Limit, error) {
	current, future, err := s.partition(ctx, s.clock.Today())
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, core.ErrNoCurrentLimit
	}
	if current.EndDate.IsZero() {
		// An indefinite limit never ends, so "the day after it ends" does
		// not exist.
		return nil, fmt.Errorf("current limit is indefinite: %w", core.ErrNoCurrentLimit)
	}

	limit := future
	if limit == nil {
		limit = &core.Limit{}
	}
	limit.Amount = amount
	limit.AutoRenew = autoRenew
	limit.SetPeriod(period, current.EndDate.AddDays(1))

	if err := s.store.SaveLimit(ctx, limit); err != nil {
		return nil, fmt.Errorf("save future limit: %w", err)
	}

	slog.InfoContext(ctx, "Future limit set",
		log.FieldLimitID, limit.ID,
		"amount", limit.Amount.Format(),
		log.FieldPeriod, limit.Period,
		log.FieldStartDate, limit.StartDate.String(),
		log.FieldEndDate, limit.EndDate.String())

	return limit, nil
}

// RemoveLimit deletes the current limit. A pending future limit is promoted
// immediately: its start date is rewritten to today and its end recomputed,
// so removal accelerates the future limit rather than leaving a gap. No-op
// when no limit exists.
func (s *LimitService) RemoveLimit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	current, future, err := s.partition(ctx, today)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	if err := s.store.DeleteLimit(ctx, current.ID); err != nil {
		return fmt.Errorf("delete limit: %w", err)
	}
	slog.InfoContext(ctx, "Limit removed", log.FieldLimitID, current.ID)

	if future != nil && future.StartDate.After(today) {
		future.SetPeriod(future.Period, today)
		if err := s.store.SaveLimit(ctx, future); err != nil {
			return fmt.Errorf("promote future limit: %w", err)
		}
		slog.InfoContext(ctx, "Future limit promoted after removal",
			log.FieldLimitID, future.ID,
			log.FieldStartDate, future.StartDate.String(),
			log.FieldEndDate, future.EndDate.String())
	}

	return nil
}

// CheckAndResetLimitIfNeeded is the daily transition check. When the current
// limit's period has elapsed (today >= end date) exactly one of the following
// happens, in priority order:
//
//  1. a pending future limit is activated (it beats auto-renewal),
//  2. the current limit auto-renews in place,
//  3. the current limit expires and is deleted.
//
// Each transition persists and then emits its notification. Running the check
// again on the same day is a no-op. Concurrent invocations are collapsed into
// a single execution.
func (s *LimitService) CheckAndResetLimitIfNeeded(ctx context.Context) error {
	_, err, _ := s.reset.Do("reset", func() (any, error) {
		return nil, s.runResetCheck(ctx)
	})
	return err
}

func (s *LimitService) runResetCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	current, future, err := s.partition(ctx, today)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	if current.EndDate.IsZero() {
		// Indefinite periods never elapse.
		return nil
	}
	if today.Before(current.EndDate) {
		// Period still active.
		return nil
	}

	switch {
	case future != nil:
		// A pre-declared future limit takes priority over auto-renewal. The
		// replaced record is removed so at most one current and one future
		// limit ever persist.
		future.SetPeriod(future.Period, today)
		if err := s.store.SaveLimit(ctx, future); err != nil {
			return fmt.Errorf("activate future limit: %w", err)
		}
		if err := s.store.DeleteLimit(ctx, current.ID); err != nil {
			return fmt.Errorf("remove replaced limit: %w", err)
		}
		slog.InfoContext(ctx, "Future limit activated",
			log.FieldLimitID, future.ID,
			"amount", future.Amount.Format(),
			"replaced_id", current.ID,
			log.FieldStartDate, future.StartDate.String(),
			log.FieldEndDate, future.EndDate.String())
		s.notify(ctx, activationMessage(*future))

	case current.AutoRenew:
		oldStart, oldEnd := current.StartDate, current.EndDate
		current.SetPeriod(current.Period, today)
		if err := s.store.SaveLimit(ctx, current); err != nil {
			return fmt.Errorf("renew limit: %w", err)
		}
		slog.InfoContext(ctx, "Limit auto-renewed",
			log.FieldLimitID, current.ID,
			"old_start", oldStart.String(),
			"old_end", oldEnd.String(),
			"new_start", current.StartDate.String(),
			"new_end", current.EndDate.String())
		s.notify(ctx, renewalMessage(*current, oldStart, oldEnd, current.StartDate))

	default:
		if err := s.store.DeleteLimit(ctx, current.ID); err != nil {
			return fmt.Errorf("delete expired limit: %w", err)
		}
		slog.InfoContext(ctx, "Limit expired and deleted",
			log.FieldLimitID, current.ID,
			log.FieldStartDate, current.StartDate.String(),
			log.FieldEndDate, current.EndDate.String())
		s.notify(ctx, expirationMessage(*current))
	}

	return nil
}

// partition splits the stored limits into the current slot (the most recently
// started limit with start <= asOf, elapsed or not) and the future slot. A
// trailing record that begins after its predecessor's period ends is the
// pending future limit even once its start date has arrived: it stays in the
// future slot until the reset check activates it. Any additional stale
// records are ignored rather than trusted by position.
func (s *LimitService) partition(ctx context.Context, asOf core.Date) (current, future *core.Limit, err error) {
	limits, err := s.store.ListCurrentAndFutureLimits(ctx, asOf)
	if err != nil {
		return nil, nil, fmt.Errorf("list limits: %w", err)
	}

	rest := limits
	if n := len(limits); n >= 2 {
		last, prev := limits[n-1], limits[n-2]
		if last.StartDate.After(asOf) || (!prev.EndDate.IsZero() && last.StartDate.After(prev.EndDate)) {
			future = &last
			rest = limits[:n-1]
		}
	}

	for i := range rest {
		l := rest[i]
		if l.StartDate.After(asOf) {
			if future == nil {
				future = &l
			}
			continue
		}
		// Ascending order: the last non-future entry started most recently.
		current = &l
	}
	return current, future, nil
}

// notify hands a formatted message to the notifier. Delivery is best-effort:
// failures are logged and never propagated to the caller.
func (s *LimitService) notify(ctx context.Context, message string) {
	if s.notifier == nil {
		slog.WarnContext(ctx, "Notifier not available, skipping notification")
		return
	}
	if err := s.notifier.Publish(ctx, message); err != nil {
		slog.ErrorContext(ctx, "Failed to publish notification", log.FieldError, err)
	}
}
