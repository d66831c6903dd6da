package services

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
	"github.com/tbourn/flatmate-bot/internal/scheduler"
)

const (
	// DefaultCycle is how long a dishwasher program runs.
	DefaultCycle = 4 * time.Minute

	// ReminderKey identifies the "dishwasher is done" one-shot job. There is
	// never more than one armed.
	ReminderKey = "dishwasher-ready"
)

// Reminders is the slice of the scheduler the dishwasher needs.
type Reminders interface {
	AddOneShot(key string, at time.Time, job scheduler.Job)
	Cancel(key string) bool
}

// DishwasherState is derived from the latest load/unload event.
type DishwasherState int

const (
	Unloaded DishwasherState = iota
	Loaded
)

func (s DishwasherState) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "unloaded"
}

// DishwasherStatus is a snapshot of the machine. Last is nil when nothing
// was ever recorded; ReadyAt is set only while Loaded.
type DishwasherStatus struct {
	State   DishwasherState
	Last    *domain.Notification
	ReadyAt time.Time
}

// Dishwasher enforces load → unload ordering on top of the event log and
// keeps the ready reminder armed.
type Dishwasher struct {
	DB        *gorm.DB
	Clock     clockwork.Clock
	Cycle     time.Duration
	Honesty   *Honesty
	Reminders Reminders
	Log       zerolog.Logger

	// OnReady is called by the reminder when the current load finishes.
	OnReady func(ctx context.Context) error
}

func (d *Dishwasher) cycle() time.Duration {
	if d.Cycle <= 0 {
		return DefaultCycle
	}
	return d.Cycle
}

// Status derives the current state from the event log.
func (d *Dishwasher) Status(ctx context.Context) (DishwasherStatus, error) {
	return d.statusIn(ctx, d.DB)
}

func (d *Dishwasher) statusIn(ctx context.Context, db *gorm.DB) (DishwasherStatus, error) {
	last, err := repo.LastNotificationOf(ctx, db, domain.DishwasherTypes...)
	if errors.Is(err, repo.ErrNotFound) {
		return DishwasherStatus{State: Unloaded}, nil
	}
	if err != nil {
		return DishwasherStatus{}, err
	}
	st := DishwasherStatus{State: Unloaded, Last: last}
	if last.Type == domain.NotificationDishwasherLoad {
		st.State = Loaded
		st.ReadyAt = last.CreatedAt.Add(d.cycle())
	}
	return st, nil
}

// Load records a load by userID and arms the ready reminder. It returns the
// new event and the time the program finishes.
func (d *Dishwasher) Load(ctx context.Context, userID int64) (*domain.Notification, time.Time, error) {
	ctx, span := otel.Tracer("services/Dishwasher").Start(ctx, "Load",
		trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var n *domain.Notification
	err := repo.WithTx(ctx, d.DB, func(tx *gorm.DB) error {
		if err := d.Honesty.checkIn(ctx, tx, domain.NotificationDishwasherLoad); err != nil {
			return err
		}
		st, err := d.statusIn(ctx, tx)
		if err != nil {
			return err
		}
		if st.State == Loaded {
			return &PreconditionError{Reason: MustUnloadFirst, At: st.Last.CreatedAt}
		}
		n, err = repo.AppendNotification(ctx, tx, userID, domain.NotificationDishwasherLoad, d.Clock.Now())
		return err
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	readyAt := n.CreatedAt.Add(d.cycle())
	d.arm(n.ID, readyAt)
	return n, readyAt, nil
}

// Unload records an unload by userID once the program has finished.
func (d *Dishwasher) Unload(ctx context.Context, userID int64) (*domain.Notification, error) {
	ctx, span := otel.Tracer("services/Dishwasher").Start(ctx, "Unload",
		trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var n *domain.Notification
	err := repo.WithTx(ctx, d.DB, func(tx *gorm.DB) error {
		if err := d.Honesty.checkIn(ctx, tx, domain.NotificationDishwasherUnload); err != nil {
			return err
		}
		st, err := d.statusIn(ctx, tx)
		if err != nil {
			return err
		}
		if st.State == Unloaded {
			pe := &PreconditionError{Reason: MustLoadFirst}
			if st.Last != nil {
				pe.At = st.Last.CreatedAt
			}
			return pe
		}
		now := d.Clock.Now()
		if now.Before(st.ReadyAt) {
			return &PreconditionError{Reason: StillRunning, At: st.ReadyAt}
		}
		n, err = repo.AppendNotification(ctx, tx, userID, domain.NotificationDishwasherUnload, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.Reminders.Cancel(ReminderKey)
	return n, nil
}

// Rearm restores the ready reminder after a restart. It arms at most one
// job, for the remaining time of a load that has not finished yet, and
// reports whether it did.
func (d *Dishwasher) Rearm(ctx context.Context) (bool, error) {
	st, err := d.Status(ctx)
	if err != nil {
		return false, err
	}
	if st.State != Loaded || !st.ReadyAt.After(d.Clock.Now()) {
		return false, nil
	}
	d.arm(st.Last.ID, st.ReadyAt)
	d.Log.Info().Time("ready_at", st.ReadyAt).Msg("dishwasher reminder re-armed")
	return true, nil
}

// arm schedules the reminder for the load with id loadID. When it fires it
// stays silent unless that load is still the latest dishwasher event.
func (d *Dishwasher) arm(loadID uint, at time.Time) {
	d.Reminders.AddOneShot(ReminderKey, at, func(ctx context.Context) error {
		st, err := d.Status(ctx)
		if err != nil {
			return err
		}
		if st.State != Loaded || st.Last.ID != loadID {
			d.Log.Debug().Uint("load_id", loadID).Msg("stale dishwasher reminder skipped")
			return nil
		}
		if d.OnReady == nil {
			return nil
		}
		return d.OnReady(ctx)
	})
}
