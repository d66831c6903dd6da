// Package scheduler runs two kinds of background work: recurring jobs on a
// cron spec (daily digests) and keyed one-shot jobs that fire once at an
// absolute time (dishwasher reminder). One-shots live only in memory; callers
// re-arm them from persisted state after a restart.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled work. A returned error is logged and the
// occurrence is dropped; nothing is retried.
type Job func(ctx context.Context) error

// Executor decides where a job body runs. The bot's event loop implements it
// so that jobs and user handlers never interleave.
type Executor interface {
	Execute(ctx context.Context, name string, fn func(context.Context))
}

// Inline runs jobs on the calling goroutine.
type Inline struct{}

func (Inline) Execute(ctx context.Context, _ string, fn func(context.Context)) { fn(ctx) }

var (
	// ErrUnknownJob is returned by Trigger for an unregistered name.
	ErrUnknownJob = errors.New("scheduler: unknown job")
	// ErrDuplicateJob is returned when a recurring name is registered twice.
	ErrDuplicateJob = errors.New("scheduler: job already registered")
)

// Options configures a Scheduler. Zero values pick the real clock, UTC,
// inline execution and a disabled logger.
type Options struct {
	Clock    clockwork.Clock
	Location *time.Location
	Executor Executor
	Logger   zerolog.Logger
}

type recurring struct {
	id   cron.EntryID
	spec string
	job  Job
}

// Scheduler owns the cron runner and the one-shot timers.
type Scheduler struct {
	clock clockwork.Clock
	loc   *time.Location
	exec  Executor
	log   zerolog.Logger
	cron  *cron.Cron

	mu        sync.Mutex
	ctx       context.Context
	recurring map[string]recurring
	oneShots  map[string]clockwork.Timer
}

// New builds a stopped scheduler.
func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Executor == nil {
		opts.Executor = Inline{}
	}
	cl := cronLogger{log: opts.Logger}
	return &Scheduler{
		clock: opts.Clock,
		loc:   opts.Location,
		exec:  opts.Executor,
		log:   opts.Logger,
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		ctx:       context.Background(),
		recurring: make(map[string]recurring),
		oneShots:  make(map[string]clockwork.Timer),
	}
}

// AddRecurring registers a job on a standard 5-field cron spec evaluated in
// the scheduler's location. Missed firings are not backfilled.
func (s *Scheduler) AddRecurring(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recurring[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("scheduler: job %s: bad spec %q: %w", name, spec, err)
	}
	s.recurring[name] = recurring{id: id, spec: spec, job: job}
	s.log.Info().Str("job", name).Str("spec", spec).Msg("recurring job registered")
	return nil
}

// Trigger runs a recurring job now, outside its schedule.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	r, ok := s.recurring[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.run(name, r.job)
	return nil
}

// Next returns the next firing time of a recurring job. Before Start it is
// computed from the cron expression and the scheduler clock.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	r, ok := s.recurring[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	if next := s.cron.Entry(r.id).Next; !next.IsZero() {
		return next, true
	}
	sched, err := cron.ParseStandard(r.spec)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(s.clock.Now().In(s.loc)), true
}

// Recurring lists registered recurring job names in sorted order.
func (s *Scheduler) Recurring() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.recurring))
	for n := range s.recurring {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddOneShot arms job to fire once at `at`. Registering a key that is still
// pending replaces the earlier timer, so at most one job per key is armed.
// A time in the past fires immediately.
func (s *Scheduler) AddOneShot(key string, at time.Time, job Job) {
	d := at.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.oneShots[key]; ok {
		old.Stop()
	}
	var t clockwork.Timer
	t = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		current := s.oneShots[key] == t
		if current {
			delete(s.oneShots, key)
			pendingOneShots.Dec()
		}
		s.mu.Unlock()
		if current {
			s.run(key, job)
		}
	})
	if _, replaced := s.oneShots[key]; !replaced {
		pendingOneShots.Inc()
	}
	s.oneShots[key] = t
	s.log.Debug().Str("job", key).Time("at", at).Dur("in", d).Msg("one-shot armed")
}

// Cancel disarms a pending one-shot. It reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.oneShots[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.oneShots, key)
	pendingOneShots.Dec()
	return true
}

// Pending reports whether a one-shot with this key is armed.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.oneShots[key]
	return ok
}

// Len returns the number of armed one-shots.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.oneShots)
}

// Start begins firing recurring jobs. ctx is handed to every job body.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.log.Info().Int("recurring", len(s.Recurring())).Str("tz", s.loc.String()).Msg("scheduler started")
}

// Stop halts the cron runner, waits for running recurring jobs, and disarms
// every one-shot.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	for k, t := range s.oneShots {
		t.Stop()
		delete(s.oneShots, k)
		pendingOneShots.Dec()
	}
	s.mu.Unlock()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(name string, job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.exec.Execute(ctx, name, func(ctx context.Context) {
		start := s.clock.Now()
		err := job(ctx)
		jobDuration.WithLabelValues(name).Observe(s.clock.Since(start).Seconds())
		if err != nil {
			jobRuns.WithLabelValues(name, "error").Inc()
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		jobRuns.WithLabelValues(name, "ok").Inc()
		s.log.Debug().Str("job", name).Msg("job done")
	})
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(kv).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}
