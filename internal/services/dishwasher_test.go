package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
	"github.com/tbourn/flatmate-bot/internal/scheduler"
)

func TestDishwasher_LoadUnloadCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, readyAt, err := f.dishwasher.Load(ctx, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !readyAt.Equal(t0.Add(4*time.Minute)) || !n.CreatedAt.Equal(t0) {
		t.Fatalf("readyAt = %v, created = %v", readyAt, n.CreatedAt)
	}
	if at, ok := f.reminders.at[ReminderKey]; !ok || !at.Equal(readyAt) {
		t.Fatalf("reminder = %v, %v", at, ok)
	}

	f.clk.Advance(4*time.Minute - time.Second)
	_, err = f.dishwasher.Unload(ctx, 2)
	var pe *PreconditionError
	if !errors.Is(err, ErrPrecondition) || !errors.As(err, &pe) || pe.Reason != StillRunning || !pe.At.Equal(readyAt) {
		t.Fatalf("expected StillRunning until %v, got %v", readyAt, err)
	}

	f.clk.Advance(time.Second)
	if _, err := f.dishwasher.Unload(ctx, 2); err != nil {
		t.Fatalf("unload at ready time: %v", err)
	}
	if _, ok := f.reminders.jobs[ReminderKey]; ok {
		t.Fatalf("unload should disarm the reminder")
	}

	st, err := f.dishwasher.Status(ctx)
	if err != nil || st.State != Unloaded {
		t.Fatalf("status = %+v, %v", st, err)
	}
	if _, _, err := f.dishwasher.Load(ctx, 3); err != nil {
		t.Fatalf("load after unload: %v", err)
	}
}

func TestDishwasher_OutOfOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dishwasher.Unload(ctx, 1)
	var pe *PreconditionError
	if !errors.As(err, &pe) || pe.Reason != MustLoadFirst || !pe.At.IsZero() {
		t.Fatalf("unload with no history: %v", err)
	}

	first, _, err := f.dishwasher.Load(ctx, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	f.clk.Advance(10 * time.Minute)
	_, _, err = f.dishwasher.Load(ctx, 2)
	if !errors.As(err, &pe) || pe.Reason != MustUnloadFirst || !pe.At.Equal(first.CreatedAt) {
		t.Fatalf("double load: %v", err)
	}

	unloaded, err := f.dishwasher.Unload(ctx, 2)
	if err != nil {
		t.Fatalf("unload: %v", err)
	}
	_, err = f.dishwasher.Unload(ctx, 3)
	if !errors.As(err, &pe) || pe.Reason != MustLoadFirst || !pe.At.Equal(unloaded.CreatedAt) {
		t.Fatalf("double unload: %v", err)
	}
}

func TestDishwasher_HonestyCheckedBeforeState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Three unloads today, then a load: the machine is loaded, but an unload
	// attempt must be refused for the daily limit, not for the cycle.
	for i := 0; i < 3; i++ {
		repo.AppendNotification(ctx, f.db, 1, domain.NotificationDishwasherUnload, t0.Add(-time.Duration(3-i)*time.Hour))
	}
	repo.AppendNotification(ctx, f.db, 1, domain.NotificationDishwasherLoad, t0.Add(-time.Minute))

	_, err := f.dishwasher.Unload(ctx, 1)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestDishwasher_StaleReminderIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ready := 0
	f.dishwasher.OnReady = func(context.Context) error { ready++; return nil }

	if _, _, err := f.dishwasher.Load(ctx, 1); err != nil {
		t.Fatalf("load: %v", err)
	}
	job := f.reminders.jobs[ReminderKey]

	f.clk.Advance(4 * time.Minute)
	if err := job(ctx); err != nil || ready != 1 {
		t.Fatalf("current reminder: err=%v ready=%d", err, ready)
	}

	if _, err := f.dishwasher.Unload(ctx, 1); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if err := job(ctx); err != nil || ready != 1 {
		t.Fatalf("stale reminder fired: err=%v ready=%d", err, ready)
	}
}

func TestDishwasher_RearmRemainingDurationOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loadedAt := t0.Add(-time.Minute)
	repo.AppendNotification(ctx, f.db, 1, domain.NotificationDishwasherLoad, loadedAt)

	sched := scheduler.New(scheduler.Options{Clock: f.clk, Logger: zerolog.Nop()})
	defer sched.Stop()
	fired := make(chan struct{}, 4)
	d := &Dishwasher{
		DB: f.db, Clock: f.clk, Cycle: 4 * time.Minute, Honesty: f.honesty,
		Reminders: sched, Log: zerolog.Nop(),
		OnReady: func(context.Context) error { fired <- struct{}{}; return nil },
	}

	// Restarting twice must not duplicate the reminder.
	for i := 0; i < 2; i++ {
		armed, err := d.Rearm(ctx)
		if err != nil || !armed {
			t.Fatalf("rearm #%d = %v, %v", i+1, armed, err)
		}
	}
	if sched.Len() != 1 || !sched.Pending(ReminderKey) {
		t.Fatalf("pending = %d", sched.Len())
	}

	// Remaining time is 3 minutes, not a fresh 4.
	f.clk.Advance(3*time.Minute - time.Second)
	select {
	case <-fired:
		t.Fatalf("fired early")
	case <-time.After(50 * time.Millisecond):
	}
	f.clk.Advance(time.Second)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("reminder did not fire")
	}
	select {
	case <-fired:
		t.Fatalf("reminder fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDishwasher_RearmNothingPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if armed, err := f.dishwasher.Rearm(ctx); err != nil || armed {
		t.Fatalf("empty history: %v, %v", armed, err)
	}

	// A load whose cycle already ended.
	repo.AppendNotification(ctx, f.db, 1, domain.NotificationDishwasherLoad, t0.Add(-5*time.Minute))
	if armed, _ := f.dishwasher.Rearm(ctx); armed {
		t.Fatalf("finished cycle re-armed")
	}

	// Last event is an unload.
	repo.AppendNotification(ctx, f.db, 1, domain.NotificationDishwasherUnload, t0.Add(-time.Minute))
	if armed, _ := f.dishwasher.Rearm(ctx); armed || f.reminders.adds != 0 {
		t.Fatalf("unloaded machine re-armed")
	}
}
