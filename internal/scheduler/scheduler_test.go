package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T) (*Scheduler, *clockwork.FakeClock) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(t0)
	s := New(Options{Clock: clk, Logger: zerolog.Nop()})
	t.Cleanup(s.Stop)
	return s, clk
}

func wait(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("job did not fire")
	}
	return ""
}

func expectSilence(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected firing %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOneShot_FiresOnceAtDeadline(t *testing.T) {
	s, clk := newTestScheduler(t)
	fired := make(chan string, 4)
	s.AddOneShot("k", t0.Add(4*time.Minute), func(context.Context) error {
		fired <- "k"
		return nil
	})
	if !s.Pending("k") || s.Len() != 1 {
		t.Fatalf("expected pending one-shot")
	}

	clk.Advance(4*time.Minute - time.Second)
	expectSilence(t, fired)

	clk.Advance(time.Second)
	wait(t, fired)
	clk.Advance(time.Hour)
	expectSilence(t, fired)

	// Removal from the table happens before the job body runs.
	if s.Pending("k") || s.Len() != 0 {
		t.Fatalf("fired one-shot still pending")
	}
}

func TestOneShot_ReRegisterReplaces(t *testing.T) {
	s, clk := newTestScheduler(t)
	fired := make(chan string, 4)
	job := func(tag string) Job {
		return func(context.Context) error { fired <- tag; return nil }
	}
	s.AddOneShot("dw", t0.Add(time.Minute), job("first"))
	s.AddOneShot("dw", t0.Add(2*time.Minute), job("second"))
	if s.Len() != 1 {
		t.Fatalf("Len = %d; want 1", s.Len())
	}

	clk.Advance(time.Minute)
	expectSilence(t, fired)
	clk.Advance(time.Minute)
	if got := wait(t, fired); got != "second" {
		t.Fatalf("fired %q", got)
	}
}

func TestOneShot_PastDeadlineFiresImmediately(t *testing.T) {
	s, _ := newTestScheduler(t)
	fired := make(chan string, 1)
	s.AddOneShot("late", t0.Add(-time.Hour), func(context.Context) error {
		fired <- "late"
		return nil
	})
	wait(t, fired)
}

func TestOneShot_Cancel(t *testing.T) {
	s, clk := newTestScheduler(t)
	fired := make(chan string, 1)
	s.AddOneShot("k", t0.Add(time.Minute), func(context.Context) error {
		fired <- "k"
		return nil
	})
	if !s.Cancel("k") {
		t.Fatalf("Cancel returned false")
	}
	if s.Cancel("k") {
		t.Fatalf("second Cancel returned true")
	}
	clk.Advance(time.Hour)
	expectSilence(t, fired)
}

func TestOneShot_ErrorIsDropped(t *testing.T) {
	s, clk := newTestScheduler(t)
	fired := make(chan string, 1)
	s.AddOneShot("boom", t0.Add(time.Second), func(context.Context) error {
		fired <- "boom"
		return errors.New("broken")
	})
	clk.Advance(time.Second)
	wait(t, fired)
	if s.Pending("boom") {
		t.Fatalf("failed job was rescheduled")
	}
}

type recordingExec struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingExec) Execute(ctx context.Context, name string, fn func(context.Context)) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	fn(ctx)
}

func TestRecurring_RegisterTriggerAndNext(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	clk := clockwork.NewFakeClockAt(t0)
	exec := &recordingExec{}
	s := New(Options{Clock: clk, Location: loc, Executor: exec, Logger: zerolog.Nop()})
	defer s.Stop()

	runs := 0
	if err := s.AddRecurring("digest", "0 0 * * *", func(context.Context) error { runs++; return nil }); err != nil {
		t.Fatalf("AddRecurring: %v", err)
	}
	if err := s.AddRecurring("digest", "0 0 * * *", func(context.Context) error { return nil }); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
	if err := s.AddRecurring("bad", "every day", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected spec error")
	}

	next, ok := s.Next("digest")
	if !ok {
		t.Fatalf("Next: not found")
	}
	// 12:00 UTC is 15:00 at UTC+3, so the next local midnight is 21:00 UTC.
	if want := time.Date(2030, 3, 10, 21, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("Next = %v; want %v", next, want)
	}

	if err := s.Trigger("digest"); err != nil || runs != 1 {
		t.Fatalf("Trigger = %v, runs = %d", err, runs)
	}
	if err := s.Trigger("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
	if len(exec.names) != 1 || exec.names[0] != "digest" {
		t.Fatalf("executor saw %v", exec.names)
	}
	if got := s.Recurring(); len(got) != 1 || got[0] != "digest" {
		t.Fatalf("Recurring = %v", got)
	}
}

func TestStop_DisarmsOneShots(t *testing.T) {
	clk := clockwork.NewFakeClockAt(t0)
	s := New(Options{Clock: clk})
	s.Start(context.Background())
	fired := make(chan string, 1)
	s.AddOneShot("k", t0.Add(time.Minute), func(context.Context) error { fired <- "k"; return nil })
	s.Stop()
	if s.Len() != 0 {
		t.Fatalf("Len after Stop = %d", s.Len())
	}
	clk.Advance(time.Hour)
	expectSilence(t, fired)
}
