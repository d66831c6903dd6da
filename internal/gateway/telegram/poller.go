package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/tbourn/flatmate-bot/internal/gateway"
)

// Updater is the part of Client the poller needs.
type Updater interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Poller fetches updates with getUpdates and hands them to Handle in order.
// Failed polls are retried with exponential backoff.
type Poller struct {
	Client  Updater
	Timeout time.Duration
	Backoff *backoff.Backoff
	Log     zerolog.Logger
	Handle  func(ctx context.Context, ev gateway.Event)

	offset int64
}

// Offset returns the next update id the poller will ask for.
func (p *Poller) Offset() int64 { return p.offset }

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.Backoff == nil {
		p.Backoff = &backoff.Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: true}
	}
	p.Log.Info().Dur("timeout", p.Timeout).Msg("long polling started")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := p.PollOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			wait := p.Backoff.Duration()
			var ae *APIError
			if errors.As(err, &ae) && ae.RetryAfter > wait {
				wait = ae.RetryAfter
			}
			p.Log.Warn().Err(err).Dur("retry_in", wait).Float64("attempt", p.Backoff.Attempt()).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		p.Backoff.Reset()
		if n > 0 {
			pollerBatches.Inc()
		}
	}
}

// PollOnce performs a single getUpdates round and returns how many updates
// it handled.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	updates, err := p.Client.GetUpdates(ctx, p.offset, p.Timeout)
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}
	log := p.Log.With().Str("batch_id", uuid.NewString()).Logger()
	for _, u := range updates {
		if u.UpdateID >= p.offset {
			p.offset = u.UpdateID + 1
		}
		ev, ok := ToEvent(u)
		if !ok {
			log.Debug().Int64("update_id", u.UpdateID).Msg("update ignored")
			continue
		}
		p.Handle(log.WithContext(ctx), ev)
	}
	return len(updates), nil
}
