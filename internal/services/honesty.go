package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
	"github.com/tbourn/flatmate-bot/internal/utils"
)

// DefaultHonestyLimit is the number of same-type events allowed per day.
const DefaultHonestyLimit = 3

// Honesty caps how many events of one type may be recorded per local
// calendar day. It keeps no state of its own.
type Honesty struct {
	DB    *gorm.DB
	Clock clockwork.Clock
	Loc   *time.Location
	Limit int
}

// CountToday returns the number of active events of type t recorded today.
func (h *Honesty) CountToday(ctx context.Context, t domain.NotificationType) (int64, error) {
	return h.countIn(ctx, h.DB, t)
}

// Check returns a *RateLimitError once today's count reaches the limit.
func (h *Honesty) Check(ctx context.Context, t domain.NotificationType) error {
	return h.checkIn(ctx, h.DB, t)
}

func (h *Honesty) countIn(ctx context.Context, db *gorm.DB, t domain.NotificationType) (int64, error) {
	start, end := utils.DayBounds(h.Clock.Now(), h.Loc)
	return repo.CountNotificationsBetween(ctx, db, t, start, end)
}

func (h *Honesty) checkIn(ctx context.Context, db *gorm.DB, t domain.NotificationType) error {
	n, err := h.countIn(ctx, db, t)
	if err != nil {
		return err
	}
	limit := h.Limit
	if limit <= 0 {
		limit = DefaultHonestyLimit
	}
	if n >= int64(limit) {
		return &RateLimitError{Type: t, Limit: limit}
	}
	return nil
}
