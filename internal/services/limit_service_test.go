package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"budget/internal/core"
)

// --- Fakes ---

// fakeLimitStore is an in-memory LimitStore that keeps limits ordered by
// start date, the way the SQL query does.
type fakeLimitStore struct {
	limits  []core.Limit
	nextID  int64
	saves   int
	deletes int
	listErr error
	saveErr error
}

func (f *fakeLimitStore) ListCurrentAndFutureLimits(_ context.Context, _ core.Date) ([]core.Limit, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]core.Limit, len(f.limits))
	copy(out, f.limits)
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (f *fakeLimitStore) SaveLimit(_ context.Context, l *core.Limit) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	if l.ID == 0 {
		f.nextID++
		l.ID = f.nextID
		f.limits = append(f.limits, *l)
		return nil
	}
	for i := range f.limits {
		if f.limits[i].ID == l.ID {
			f.limits[i] = *l
			return nil
		}
	}
	f.limits = append(f.limits, *l)
	return nil
}

func (f *fakeLimitStore) DeleteLimit(_ context.Context, id int64) error {
	f.deletes++
	for i := range f.limits {
		if f.limits[i].ID == id {
			f.limits = append(f.limits[:i], f.limits[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeLimitStore) byID(id int64) *core.Limit {
	for i := range f.limits {
		if f.limits[i].ID == id {
			return &f.limits[i]
		}
	}
	return nil
}

// recordingNotifier captures published messages.
type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Publish(_ context.Context, message string) error {
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, message)
	return nil
}

// stepClock is an advanceable current-date provider.
type stepClock struct {
	date core.Date
}

func (c *stepClock) Today() core.Date { return c.date }

func newTestEngine(today core.Date) (*LimitService, *fakeLimitStore, *recordingNotifier, *stepClock) {
	store := &fakeLimitStore{}
	notifier := &recordingNotifier{}
	clk := &stepClock{date: today}
	return NewLimitService(store, notifier, clk), store, notifier, clk
}

func seedLimit(t *testing.T, store *fakeLimitStore, amountCents int64, period core.Period, start core.Date, autoRenew bool) core.Limit {
	t.Helper()
	l := core.Limit{Amount: core.Money{Cents: amountCents}, AutoRenew: autoRenew}
	l.SetPeriod(period, start)
	if err := store.SaveLimit(context.Background(), &l); err != nil {
		t.Fatalf("seed limit: %v", err)
	}
	return l
}

// --- Set / query ---

func TestSetOrUpdateLimit_RoundTrip(t *testing.T) {
	today := core.NewDate(2024, 10, 20)
	svc, _, notifier, _ := newTestEngine(today)
	ctx := context.Background()

	created, err := svc.SetOrUpdateLimit(ctx, core.Money{Cents: 100000}, core.Weekly, true)
	if err != nil {
		t.Fatalf("SetOrUpdateLimit: %v", err)
	}
	if !created.StartDate.Equal(today) {
		t.Errorf("StartDate = %s, want %s", created.StartDate, today)
	}
	if !created.EndDate.Equal(core.NewDate(2024, 10, 26)) {
		t.Errorf("EndDate = %s, want 2024-10-26", created.EndDate)
	}

	current, err := svc.GetCurrentLimit(ctx)
	if err != nil {
		t.Fatalf("GetCurrentLimit: %v", err)
	}
	if current == nil {
		t.Fatal("GetCurrentLimit returned nil after set")
	}
	if current.Expired {
		t.Error("freshly set limit reported as expired")
	}
	if current.Limit.Amount.Cents != 100000 || current.Limit.Period != core.Weekly {
		t.Errorf("round-trip mismatch: got %+v", current.Limit)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("SetOrUpdateLimit sent %d notifications, want 0", len(notifier.messages))
	}
}

func TestSetOrUpdateLimit_MutatesInPlace(t *testing.T) {
	today := core.NewDate(2024, 10, 22)
	svc, store, _, _ := newTestEngine(today)
	seeded := seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 20), false)

	updated, err := svc.SetOrUpdateLimit(context.Background(), core.Money{Cents: 250000}, core.Monthly, true)
	if err != nil {
		t.Fatalf("SetOrUpdateLimit: %v", err)
	}
	if updated.ID != seeded.ID {
		t.Errorf("expected in-place update of limit %d, got new id %d", seeded.ID, updated.ID)
	}
	if len(store.limits) != 1 {
		t.Fatalf("store holds %d limits, want 1", len(store.limits))
	}
	if !updated.StartDate.Equal(today) {
		t.Errorf("StartDate = %s, want reset to today %s", updated.StartDate, today)
	}
	if !updated.EndDate.Equal(core.NewDate(2024, 11, 21)) {
		t.Errorf("EndDate = %s, want 2024-11-21", updated.EndDate)
	}
	if !updated.AutoRenew {
		t.Error("AutoRenew not updated")
	}
}

func TestSetOrUpdateLimit_Validation(t *testing.T) {
	svc, store, _, _ := newTestEngine(core.NewDate(2024, 10, 20))
	ctx := context.Background()

	if _, err := svc.SetOrUpdateLimit(ctx, core.Money{Cents: 0}, core.Weekly, false); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.SetOrUpdateLimit(ctx, core.Money{Cents: 100}, core.Period("DAILY"), false); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Errorf("unknown period: err = %v, want ErrInvalidPeriod", err)
	}
	if store.saves != 0 {
		t.Errorf("store mutated on validation failure: %d saves", store.saves)
	}
}

func TestGetCurrentLimit_None(t *testing.T) {
	svc, _, _, _ := newTestEngine(core.NewDate(2024, 10, 20))
	current, err := svc.GetCurrentLimit(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentLimit: %v", err)
	}
	if current != nil {
		t.Errorf("GetCurrentLimit = %+v, want nil", current)
	}
}

func TestGetCurrentLimit_ExpiredFallback(t *testing.T) {
	svc, store, _, _ := newTestEngine(core.NewDate(2024, 11, 5))
	seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 20), false) // ended 2024-10-26

	current, err := svc.GetCurrentLimit(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentLimit: %v", err)
	}
	if current == nil {
		t.Fatal("expected expired fallback, got nil")
	}
	if !current.Expired {
		t.Error("elapsed limit not flagged as expired")
	}
}

func TestGetFutureLimit(t *testing.T) {
	today := core.NewDate(2024, 10, 27)
	svc, store, _, _ := newTestEngine(today)
	ctx := context.Background()

	future, err := svc.GetFutureLimit(ctx)
	if err != nil {
		t.Fatalf("GetFutureLimit: %v", err)
	}
	if future != nil {
		t.Errorf("GetFutureLimit with no limits = %+v, want nil", future)
	}

	seedLimit(t, store, 100000, core.Weekly, today, true)               // current
	seeded := seedLimit(t, store, 50000, core.Weekly, core.NewDate(2024, 11, 3), false) // future

	future, err = svc.GetFutureLimit(ctx)
	if err != nil {
		t.Fatalf("GetFutureLimit: %v", err)
	}
	if future == nil || future.ID != seeded.ID {
		t.Fatalf("GetFutureLimit = %+v, want limit %d", future, seeded.ID)
	}
}

func TestGetFutureLimit_OnItsStartDay(t *testing.T) {
	// A pending limit whose start date is today has not been activated yet:
	// it stays in the future slot and the elapsed limit stays current until
	// the reset check runs.
	svc, store, _, clk := newTestEngine(core.NewDate(2024, 10, 27))
	ctx := context.Background()

	seeded := seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 27), true) // ends 2024-11-02
	pending := seedLimit(t, store, 50000, core.Weekly, core.NewDate(2024, 11, 3), false)
	clk.date = core.NewDate(2024, 11, 3)

	future, err := svc.GetFutureLimit(ctx)
	if err != nil {
		t.Fatalf("GetFutureLimit: %v", err)
	}
	if future == nil || future.ID != pending.ID {
		t.Fatalf("GetFutureLimit = %+v, want pending limit %d", future, pending.ID)
	}

	current, err := svc.GetCurrentLimit(ctx)
	if err != nil {
		t.Fatalf("GetCurrentLimit: %v", err)
	}
	if current == nil || current.Limit.ID != seeded.ID {
		t.Fatalf("GetCurrentLimit = %+v, want elapsed limit %d", current, seeded.ID)
	}
	if !current.Expired {
		t.Error("elapsed limit not reported as expired")
	}
}

// --- Future limit declaration ---

func TestSetFutureLimitAmount_StartsAfterCurrentEnd(t *testing.T) {
	today := core.NewDate(2024, 10, 27)
	svc, _, _, _ := newTestEngine(today)
	ctx := context.Background()

	if _, err := svc.SetOrUpdateLimit(ctx, core.Money{Cents: 100000}, core.Weekly, true); err != nil {
		t.Fatalf("SetOrUpdateLimit: %v", err)
	}

	future, err := svc.SetFutureLimitAmount(ctx, core.Money{Cents: 50000}, core.Weekly, false)
	if err != nil {
		t.Fatalf("SetFutureLimitAmount: %v", err)
	}
	// Current ends 2024-11-02, so the future period starts the day after.
	if !future.StartDate.Equal(core.NewDate(2024, 11, 3)) {
		t.Errorf("future StartDate = %s, want 2024-11-03", future.StartDate)
	}
	if !future.EndDate.Equal(core.NewDate(2024, 11, 9)) {
		t.Errorf("future EndDate = %s, want 2024-11-09", future.EndDate)
	}
}

func TestSetFutureLimitAmount_NoCurrentLimit(t *testing.T) {
	svc, store, _, _ := newTestEngine(core.NewDate(2024, 10, 27))

	_, err := svc.SetFutureLimitAmount(context.Background(), core.Money{Cents: 50000}, core.Weekly, false)
	if !errors.Is(err, core.ErrNoCurrentLimit) {
		t.Errorf("err = %v, want ErrNoCurrentLimit", err)
	}
	if store.saves != 0 {
		t.Errorf("store mutated on invalid-state failure: %d saves", store.saves)
	}
}

func TestSetFutureLimitAmount_IndefiniteCurrent(t *testing.T) {
	svc, store, _, _ := newTestEngine(core.NewDate(2024, 10, 27))
	seedLimit(t, store, 100000, core.Indefinite, core.NewDate(2024, 10, 1), false)

	_, err := svc.SetFutureLimitAmount(context.Background(), core.Money{Cents: 50000}, core.Weekly, false)
	if !errors.Is(err, core.ErrNoCurrentLimit) {
		t.Errorf("err = %v, want ErrNoCurrentLimit for indefinite current limit", err)
	}
}

func TestSetFutureLimitAmount_ReplacesPending(t *testing.T) {
	today := core.NewDate(2024, 10, 27)
	svc, store, _, _ := newTestEngine(today)
	ctx := context.Background()

	seedLimit(t, store, 100000, core.Weekly, today, true)

	if _, err := svc.SetFutureLimitAmount(ctx, core.Money{Cents: 50000}, core.Weekly, false); err != nil {
		t.Fatalf("first SetFutureLimitAmount: %v", err)
	}
	second, err := svc.SetFutureLimitAmount(ctx, core.Money{Cents: 75000}, core.Monthly, true)
	if err != nil {
		t.Fatalf("second SetFutureLimitAmount: %v", err)
	}

	if len(store.limits) != 2 {
		t.Fatalf("store holds %d limits, want 2 (current + one future)", len(store.limits))
	}
	if second.Amount.Cents != 75000 || second.Period != core.Monthly {
		t.Errorf("pending future not replaced: %+v", second)
	}
}

func TestReplaceFutureLimit_KeepsStartDate(t *testing.T) {
	today := core.NewDate(2024, 10, 27)
	svc, store, _, _ := newTestEngine(today)
	ctx := context.Background()

	seedLimit(t, store, 100000, core.Weekly, today, true)
	original, err := svc.SetFutureLimitAmount(ctx, core.Money{Cents: 50000}, core.Weekly, false)
	if err != nil {
		t.Fatalf("SetFutureLimitAmount: %v", err)
	}

	replaced, err := svc.ReplaceFutureLimit(ctx, core.Money{Cents: 80000}, core.Monthly, true)
	if err != nil {
		t.Fatalf("ReplaceFutureLimit: %v", err)
	}
	if replaced.ID != original.ID {
		t.Errorf("expected in-place replacement of limit %d, got %d", original.ID, replaced.ID)
	}
	if !replaced.StartDate.Equal(original.StartDate) {
		t.Errorf("StartDate changed: %s, want %s", replaced.StartDate, original.StartDate)
	}
	if !replaced.EndDate.Equal(core.NewDate(2024, 12, 2)) {
		t.Errorf("EndDate = %s, want 2024-12-02 (monthly from 2024-11-03)", replaced.EndDate)
	}
}

func TestReplaceFutureLimit_FallsBackToSet(t *testing.T) {
	today := core.NewDate(2024, 10, 27)
	svc, store, _, _ := newTestEngine(today)
	seedLimit(t, store, 100000, core.Weekly, today, true)

	future, err := svc.ReplaceFutureLimit(context.Background(), core.Money{Cents: 50000}, core.Weekly, false)
	if err != nil {
		t.Fatalf("ReplaceFutureLimit: %v", err)
	}
	if !future.StartDate.Equal(core.NewDate(2024, 11, 3)) {
		t.Errorf("StartDate = %s, want 2024-11-03", future.StartDate)
	}
}

// --- Removal ---

func TestRemoveLimit_PromotesFuture(t *testing.T) {
	today := core.NewDate(2024, 10, 29)
	svc, store, _, _ := newTestEngine(today)

	current := seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 27), true)
	future := seedLimit(t, store, 50000, core.Weekly, core.NewDate(2024, 11, 3), false)

	if err := svc.RemoveLimit(context.Background()); err != nil {
		t.Fatalf("RemoveLimit: %v", err)
	}

	if store.byID(current.ID) != nil {
		t.Error("current limit not deleted")
	}
	promoted := store.byID(future.ID)
	if promoted == nil {
		t.Fatal("future limit vanished on promotion")
	}
	if !promoted.StartDate.Equal(today) {
		t.Errorf("promoted StartDate = %s, want today %s", promoted.StartDate, today)
	}
	if !promoted.EndDate.Equal(core.NewDate(2024, 11, 4)) {
		t.Errorf("promoted EndDate = %s, want 2024-11-04", promoted.EndDate)
	}
}

func TestRemoveLimit_NoLimit(t *testing.T) {
	svc, _, _, _ := newTestEngine(core.NewDate(2024, 10, 27))
	if err := svc.RemoveLimit(context.Background()); err != nil {
		t.Errorf("RemoveLimit with empty store: %v", err)
	}
}

// --- Daily reset check ---

func TestCheckAndReset_WeeklyAutoRenewal(t *testing.T) {
	// Scenario: weekly limit 1000.00 started 2024-10-20 (ends 2024-10-26)
	// with auto-renew; the check runs on 2024-10-27.
	svc, store, notifier, clk := newTestEngine(core.NewDate(2024, 10, 20))
	ctx := context.Background()

	seeded := seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 20), true)
	clk.date = core.NewDate(2024, 10, 27)

	if err := svc.CheckAndResetLimitIfNeeded(ctx); err != nil {
		t.Fatalf("CheckAndResetLimitIfNeeded: %v", err)
	}

	renewed := store.byID(seeded.ID)
	if renewed == nil {
		t.Fatal("renewed limit missing from store")
	}
	if !renewed.StartDate.Equal(core.NewDate(2024, 10, 27)) {
		t.Errorf("new StartDate = %s, want 2024-10-27", renewed.StartDate)
	}
	if !renewed.EndDate.Equal(core.NewDate(2024, 11, 2)) {
		t.Errorf("new EndDate = %s, want 2024-11-02", renewed.EndDate)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("got %d notifications, want exactly 1", len(notifier.messages))
	}
	want := "Ваш лимит расходов в размере 1000.00 был автоматически продлен. " +
		"Тип периода: 'Неделя'. Старый период: 2024-10-20 - 2024-10-26. " +
		"Новый период начался с 2024-10-27. Автопродление: включено."
	if notifier.messages[0] != want {
		t.Errorf("renewal message:\n got %q\nwant %q", notifier.messages[0], want)
	}
}

func TestCheckAndReset_MonthlyAutoRenewal(t *testing.T) {
	svc, store, notifier, clk := newTestEngine(core.NewDate(2024, 9, 27))
	seeded := seedLimit(t, store, 500000, core.Monthly, core.NewDate(2024, 9, 27), true) // ends 2024-10-26
	clk.date = core.NewDate(2024, 10, 27)

	if err := svc.CheckAndResetLimitIfNeeded(context.Background()); err != nil {
		t.Fatalf("CheckAndResetLimitIfNeeded: %v", err)
	}

	renewed := store.byID(seeded.ID)
	if !renewed.StartDate.Equal(core.NewDate(2024, 10, 27)) {
		t.Errorf("new StartDate = %s, want 2024-10-27", renewed.StartDate)
	}
	if !renewed.EndDate.Equal(core.NewDate(2024, 11, 26)) {
		t.Errorf("new EndDate = %s, want 2024-11-26", renewed.EndDate)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "автоматически продлен") {
		t.Errorf("expected one renewal notification, got %v", notifier.messages)
	}
}

func TestCheckAndReset_Expiration(t *testing.T) {
	// Same setup as the renewal scenario but auto-renew off: the limit is
	// deleted and a single expiration notice goes out.
	svc, store, notifier, clk := newTestEngine(core.NewDate(2024, 10, 20))
	ctx := context.Background()

	seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 20), false)
	clk.date = core.NewDate(2024, 10, 27)

	if err := svc.CheckAndResetLimitIfNeeded(ctx); err != nil {
		t.Fatalf("CheckAndResetLimitIfNeeded: %v", err)
	}

	if len(store.limits) != 0 {
		t.Errorf("store holds %d limits after expiration, want 0", len(store.limits))
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("got %d notifications, want exactly 1", len(notifier.messages))
	}
	want := "Ваш лимит расходов в размере 1000.00 истек. Тип периода: 'Неделя'. " +
		"Период: 2024-10-20 - 2024-10-26. Для установки нового лимита, пожалуйста, войдите в систему."
	if notifier.messages[0] != want {
		t.Errorf("expiration message:\n got %q\nwant %q", notifier.messages[0], want)
	}

	current, err := svc.GetCurrentLimit(ctx)
	if err != nil {
		t.Fatalf("GetCurrentLimit: %v", err)
	}
	if current != nil {
		t.Errorf("GetCurrentLimit after expiration = %+v, want nil", current)
	}
}

func TestCheckAndReset_FutureLimitBeatsAutoRenew(t *testing.T) {
	// Priority law: future limit activation wins even though the current
	// limit has auto-renew enabled.
	svc, store, notifier, clk := newTestEngine(core.NewDate(2024, 10, 27))
	ctx := context.Background()

	seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 27), true) // ends 2024-11-02
	future := seedLimit(t, store, 50000, core.Weekly, core.NewDate(2024, 11, 3), false)
	clk.date = core.NewDate(2024, 11, 3)

	if err := svc.CheckAndResetLimitIfNeeded(ctx); err != nil {
		t.Fatalf("CheckAndResetLimitIfNeeded: %v", err)
	}

	activated := store.byID(future.ID)
	if activated == nil {
		t.Fatal("activated limit missing from store")
	}
	if !activated.StartDate.Equal(core.NewDate(2024, 11, 3)) {
		t.Errorf("activated StartDate = %s, want 2024-11-03", activated.StartDate)
	}
	if !activated.EndDate.Equal(core.NewDate(2024, 11, 9)) {
		t.Errorf("activated EndDate = %s, want 2024-11-09", activated.EndDate)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("got %d notifications, want exactly 1", len(notifier.messages))
	}
	want := "Начал действовать новый лимит расходов в размере 500.00. " +
		"Тип периода: 'Неделя'. Период: 2024-11-03 - 2024-11-09."
	if notifier.messages[0] != want {
		t.Errorf("activation message:\n got %q\nwant %q", notifier.messages[0], want)
	}
	if strings.Contains(notifier.messages[0], "продлен") {
		t.Error("renewal notification sent despite future limit priority")
	}

	current, err := svc.GetCurrentLimit(ctx)
	if err != nil {
		t.Fatalf("GetCurrentLimit: %v", err)
	}
	if current == nil || current.Limit.ID != future.ID {
		t.Errorf("current limit after activation = %+v, want limit %d", current, future.ID)
	}
	if current != nil && current.Expired {
		t.Error("activated limit reported as expired")
	}
}

func TestCheckAndReset_ActivationRemovesReplacedRecord(t *testing.T) {
	svc, store, notifier, clk := newTestEngine(core.NewDate(2024, 10, 27))
	ctx := context.Background()

	replaced := seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 27), true) // ends 2024-11-02
	seedLimit(t, store, 50000, core.Weekly, core.NewDate(2024, 11, 3), false)
	clk.date = core.NewDate(2024, 11, 3)

	if err := svc.CheckAndResetLimitIfNeeded(ctx); err != nil {
		t.Fatalf("CheckAndResetLimitIfNeeded: %v", err)
	}

	if len(store.limits) != 1 {
		t.Errorf("store holds %d limits after activation, want 1", len(store.limits))
	}
	if store.byID(replaced.ID) != nil {
		t.Error("replaced limit record still in store after activation")
	}

	// A second check on the activation day must not re-activate.
	if err := svc.CheckAndResetLimitIfNeeded(ctx); err != nil {
		t.Fatalf("second check: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("two same-day checks produced %d notifications, want 1", len(notifier.messages))
	}
}

func TestCheckAndReset_LateFutureActivation(t *testing.T) {
	// The check did not run on the future limit's start day; a later run
	// still activates it, rewriting its start to today.
	svc, store, notifier, clk := newTestEngine(core.NewDate(2024, 10, 27))
	ctx := context.Background()

	seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 27), true) // ends 2024-11-02
	pending := seedLimit(t, store, 50000, core.Weekly, core.NewDate(2024, 11, 3), false)
	clk.date = core.NewDate(2024, 11, 5)

	if err := svc.CheckAndResetLimitIfNeeded(ctx); err != nil {
		t.Fatalf("CheckAndResetLimitIfNeeded: %v", err)
	}

	activated := store.byID(pending.ID)
	if activated == nil {
		t.Fatal("activated limit missing from store")
	}
	if !activated.StartDate.Equal(core.NewDate(2024, 11, 5)) {
		t.Errorf("activated StartDate = %s, want 2024-11-05", activated.StartDate)
	}
	if !activated.EndDate.Equal(core.NewDate(2024, 11, 11)) {
		t.Errorf("activated EndDate = %s, want 2024-11-11", activated.EndDate)
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "Начал действовать") {
		t.Errorf("notifications = %v, want one activation message", notifier.messages)
	}
}

func TestCheckAndReset_Idempotent(t *testing.T) {
	svc, _, notifier, clk := newTestEngine(core.NewDate(2024, 10, 20))
	ctx := context.Background()

	if _, err := svc.SetOrUpdateLimit(ctx, core.Money{Cents: 100000}, core.Weekly, true); err != nil {
		t.Fatalf("SetOrUpdateLimit: %v", err)
	}
	clk.date = core.NewDate(2024, 10, 27)

	if err := svc.CheckAndResetLimitIfNeeded(ctx); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if err := svc.CheckAndResetLimitIfNeeded(ctx); err != nil {
		t.Fatalf("second check: %v", err)
	}

	if len(notifier.messages) != 1 {
		t.Errorf("two same-day checks produced %d notifications, want 1", len(notifier.messages))
	}
}

func TestCheckAndReset_NoopCases(t *testing.T) {
	tests := []struct {
		name string
		seed func(t *testing.T, store *fakeLimitStore)
		date core.Date
	}{
		{
			name: "no limit",
			seed: func(*testing.T, *fakeLimitStore) {},
			date: core.NewDate(2024, 10, 27),
		},
		{
			name: "period still active",
			seed: func(t *testing.T, store *fakeLimitStore) {
				seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 27), true)
			},
			date: core.NewDate(2024, 10, 28),
		},
		{
			name: "indefinite never resets",
			seed: func(t *testing.T, store *fakeLimitStore) {
				seedLimit(t, store, 100000, core.Indefinite, core.NewDate(2020, 1, 1), true)
			},
			date: core.NewDate(2024, 10, 27),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, notifier, clk := newTestEngine(tt.date)
			tt.seed(t, store)
			clk.date = tt.date
			before := len(store.limits)

			if err := svc.CheckAndResetLimitIfNeeded(context.Background()); err != nil {
				t.Fatalf("CheckAndResetLimitIfNeeded: %v", err)
			}
			if len(notifier.messages) != 0 {
				t.Errorf("no-op case published %d notifications", len(notifier.messages))
			}
			if len(store.limits) != before {
				t.Errorf("no-op case changed store size %d -> %d", before, len(store.limits))
			}
		})
	}
}

func TestCheckAndReset_OnEndDateItself(t *testing.T) {
	// today >= end triggers the transition, so the check fires on the last
	// day of the period too.
	svc, store, notifier, clk := newTestEngine(core.NewDate(2024, 10, 20))
	seeded := seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 20), true)
	clk.date = core.NewDate(2024, 10, 26)

	if err := svc.CheckAndResetLimitIfNeeded(context.Background()); err != nil {
		t.Fatalf("CheckAndResetLimitIfNeeded: %v", err)
	}
	renewed := store.byID(seeded.ID)
	if !renewed.StartDate.Equal(core.NewDate(2024, 10, 26)) {
		t.Errorf("StartDate = %s, want 2024-10-26", renewed.StartDate)
	}
	if len(notifier.messages) != 1 {
		t.Errorf("got %d notifications, want 1", len(notifier.messages))
	}
}

func TestCheckAndReset_NotifierFailureDoesNotFailCheck(t *testing.T) {
	svc, store, notifier, clk := newTestEngine(core.NewDate(2024, 10, 20))
	notifier.err = errors.New("broker down")
	seeded := seedLimit(t, store, 100000, core.Weekly, core.NewDate(2024, 10, 20), true)
	clk.date = core.NewDate(2024, 10, 27)

	if err := svc.CheckAndResetLimitIfNeeded(context.Background()); err != nil {
		t.Fatalf("delivery failure must not propagate, got %v", err)
	}
	if renewed := store.byID(seeded.ID); !renewed.StartDate.Equal(core.NewDate(2024, 10, 27)) {
		t.Error("renewal did not persist despite notifier failure")
	}
}

func TestCheckAndReset_StoreErrorPropagates(t *testing.T) {
	svc, store, _, _ := newTestEngine(core.NewDate(2024, 10, 27))
	store.listErr = errors.New("db closed")

	if err := svc.CheckAndResetLimitIfNeeded(context.Background()); err == nil {
		t.Error("expected store error to propagate")
	}
}
