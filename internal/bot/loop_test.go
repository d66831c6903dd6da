package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startLoop(t *testing.T, size int) (*Loop, context.CancelFunc) {
	t.Helper()
	l := NewLoop(size, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l, _ := startLoop(t, 8)
	got := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		i := i
		if err := l.Submit(context.Background(), "n", func(context.Context) { got <- i }); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	for want := 1; want <= 3; want++ {
		select {
		case n := <-got:
			if n != want {
				t.Fatalf("order: got %d, want %d", n, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d never ran", want)
		}
	}
}

func TestLoop_TaskOutlivesCallerContext(t *testing.T) {
	l, _ := startLoop(t, 8)
	block := make(chan struct{})
	if err := l.Submit(context.Background(), "block", func(context.Context) { <-block }); err != nil {
		t.Fatalf("submit: %v", err)
	}

	reqCtx, cancelReq := context.WithCancel(context.Background())
	result := make(chan error, 1)
	if err := l.Submit(reqCtx, "update", func(ctx context.Context) { result <- ctx.Err() }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	cancelReq()
	close(block)

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("task saw cancelled context: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("task never ran")
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	l, _ := startLoop(t, 8)
	done := make(chan struct{})
	l.Submit(context.Background(), "boom", func(context.Context) { panic("boom") })
	l.Submit(context.Background(), "after", func(context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop died after panic")
	}
}

func TestLoop_SubmitAfterStop(t *testing.T) {
	l, cancel := startLoop(t, 1)
	cancel()
	<-l.Done()
	if err := l.Submit(context.Background(), "late", func(context.Context) {}); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("expected ErrLoopStopped, got %v", err)
	}
}

func TestLoop_ExecuteFromInsideTaskDoesNotBlock(t *testing.T) {
	l, _ := startLoop(t, 4)
	ran := make(chan struct{})
	l.Submit(context.Background(), "outer", func(ctx context.Context) {
		l.Execute(ctx, "inner", func(context.Context) { close(ran) })
	})
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("nested job never ran")
	}
}
