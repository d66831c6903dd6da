package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/gateway/telegram"
	"github.com/tbourn/flatmate-bot/internal/http/middleware"
	"github.com/tbourn/flatmate-bot/internal/repo"
)

// DefaultMaxUpdateBytes bounds a single webhook body.
const DefaultMaxUpdateBytes = 1 << 20

// DefaultDedupTTL is how long a processed update id is remembered.
const DefaultDedupTTL = 24 * time.Hour

// Submitter hands work to the single event loop.
type Submitter interface {
	Submit(ctx context.Context, name string, fn func(context.Context)) error
}

// Webhook receives Telegram updates over HTTP. It acknowledges every
// well-formed update quickly and processes it on the event loop; a
// redelivered update id is acknowledged without being processed again.
type Webhook struct {
	DB       *gorm.DB
	Loop     Submitter
	Handle   func(context.Context, gateway.Event)
	Clock    clockwork.Clock
	DedupTTL time.Duration
	MaxBytes int64
}

// Receive handles POST <webhook path>.
//
// Responses:
//   - 200 {"status": "accepted" | "duplicate" | "ignored"}
//   - 400 bad_request when the body is not an update
//   - 413 payload_too_large
//   - 500 internal_error when the ledger is unavailable
//   - 503 unavailable when the loop is shutting down (Telegram retries)
func (w *Webhook) Receive(c *gin.Context) {
	limit := w.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxUpdateBytes
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		webhookUpdates.WithLabelValues(outcomeMalformed).Inc()
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	if int64(len(body)) > limit {
		webhookUpdates.WithLabelValues(outcomeMalformed).Inc()
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "update too large")
		return
	}

	u, err := telegram.DecodeUpdate(body)
	if err != nil || u.UpdateID == 0 {
		webhookUpdates.WithLabelValues(outcomeMalformed).Inc()
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update")
		return
	}

	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c).With().Int64("update_id", u.UpdateID).Logger()

	switch err := repo.ClaimUpdate(ctx, w.DB, u.UpdateID, w.now(), w.ttl()); {
	case errors.Is(err, repo.ErrDuplicate):
		webhookUpdates.WithLabelValues(outcomeDuplicate).Inc()
		lg.Debug().Msg("duplicate update")
		ok(c, http.StatusOK, StatusResponse{Status: outcomeDuplicate})
		return
	case err != nil:
		webhookUpdates.WithLabelValues(outcomeError).Inc()
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not record update")
		return
	}

	ev, accepted := telegram.ToEvent(u)
	if !accepted {
		webhookUpdates.WithLabelValues(outcomeIgnored).Inc()
		ok(c, http.StatusOK, StatusResponse{Status: outcomeIgnored})
		return
	}

	handle := w.Handle
	err = w.Loop.Submit(ctx, "update:"+strconv.FormatInt(u.UpdateID, 10), func(ctx context.Context) {
		handle(ctx, ev)
	})
	if err != nil {
		// Let the redelivery through.
		if rerr := repo.ReleaseUpdate(context.WithoutCancel(ctx), w.DB, u.UpdateID); rerr != nil {
			lg.Error().Err(rerr).Msg("release update claim")
		}
		webhookUpdates.WithLabelValues(outcomeRejected).Inc()
		lg.Warn().Err(err).Msg("update not queued")
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "bot is shutting down")
		return
	}

	webhookUpdates.WithLabelValues(outcomeAccepted).Inc()
	ok(c, http.StatusOK, StatusResponse{Status: outcomeAccepted})
}

func (w *Webhook) now() time.Time {
	if w.Clock == nil {
		return time.Now()
	}
	return w.Clock.Now()
}

func (w *Webhook) ttl() time.Duration {
	if w.DedupTTL <= 0 {
		return DefaultDedupTTL
	}
	return w.DedupTTL
}
