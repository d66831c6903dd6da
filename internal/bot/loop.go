package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrLoopStopped is returned by Submit once Run has returned.
var ErrLoopStopped = errors.New("bot: loop stopped")

// Default loop settings.
const (
	DefaultQueueSize   = 256
	DefaultTaskTimeout = 30 * time.Second
)

type task struct {
	name string
	ctx  context.Context
	fn   func(context.Context)
}

// Loop serializes all work touching the bot: inbound updates and scheduled
// jobs are queued and executed one at a time by Run.
type Loop struct {
	tasks   chan task
	timeout time.Duration
	log     zerolog.Logger
	done    chan struct{}
}

// NewLoop returns a loop with a queue of size entries. Each task gets at
// most timeout to run.
func NewLoop(size int, timeout time.Duration, log zerolog.Logger) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Loop{
		tasks:   make(chan task, size),
		timeout: timeout,
		log:     log.With().Str("component", "loop").Logger(),
		done:    make(chan struct{}),
	}
}

// Submit queues fn. It blocks while the queue is full and fails once ctx is
// done or the loop has stopped. The context fn receives keeps ctx's values
// but not its cancellation, so a finished webhook request does not abort
// the work it queued.
func (l *Loop) Submit(ctx context.Context, name string, fn func(context.Context)) error {
	if l.closed() {
		return ErrLoopStopped
	}
	select {
	case l.tasks <- task{name: name, ctx: ctx, fn: fn}:
		queueDepth.Set(float64(len(l.tasks)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Execute implements scheduler.Executor. Jobs triggered from inside a task
// (an admin's /digest) are queued behind it instead of blocking the loop.
func (l *Loop) Execute(ctx context.Context, name string, fn func(context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.closed() {
		l.log.Warn().Str("task", name).Msg("loop stopped, job dropped")
		return
	}
	select {
	case l.tasks <- task{name: name, ctx: ctx, fn: fn}:
		queueDepth.Set(float64(len(l.tasks)))
	default:
		l.log.Warn().Str("task", name).Msg("queue full, job dropped")
	}
}

// Run drains the queue until ctx is cancelled. Tasks still queued at that
// point are discarded.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Int("discarded", len(l.tasks)).Msg("loop stopped")
			return
		case t := <-l.tasks:
			queueDepth.Set(float64(len(l.tasks)))
			l.run(t)
		}
	}
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Loop) run(t task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), l.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Error().Str("task", t.name).Err(fmt.Errorf("panic: %v", rec)).Msg("task panicked")
		}
	}()
	t.fn(ctx)
}
