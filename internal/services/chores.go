package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
)

// Defaults for noise complaints.
const (
	DefaultSilenceWindow = 30 * time.Minute
	DefaultSilenceLimit  = 3
)

// SilenceOutcome tells the caller which message a complaint deserves.
type SilenceOutcome int

const (
	// SilenceFirst: no complaint in the window yet.
	SilenceFirst SilenceOutcome = iota + 1
	// SilenceRepeated: someone already complained recently.
	SilenceRepeated
	// SilenceExhausted: the window's complaints are used up; nothing was
	// recorded.
	SilenceExhausted
)

// Chores records trash runs and noise complaints.
type Chores struct {
	DB      *gorm.DB
	Clock   clockwork.Clock
	Honesty *Honesty

	SilenceWindow time.Duration
	SilenceLimit  int
}

// Trash records that userID took out the trash.
func (c *Chores) Trash(ctx context.Context, userID int64) (*domain.Notification, error) {
	var n *domain.Notification
	err := repo.WithTx(ctx, c.DB, func(tx *gorm.DB) error {
		if err := c.Honesty.checkIn(ctx, tx, domain.NotificationTrash); err != nil {
			return err
		}
		var err error
		n, err = repo.AppendNotification(ctx, tx, userID, domain.NotificationTrash, c.Clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Silence records a noise complaint from userID unless the recent window
// already holds SilenceLimit complaints.
func (c *Chores) Silence(ctx context.Context, userID int64) (SilenceOutcome, error) {
	window, limit := c.SilenceWindow, c.SilenceLimit
	if window <= 0 {
		window = DefaultSilenceWindow
	}
	if limit <= 0 {
		limit = DefaultSilenceLimit
	}

	var out SilenceOutcome
	err := repo.WithTx(ctx, c.DB, func(tx *gorm.DB) error {
		now := c.Clock.Now()
		recent, err := repo.CountNotificationsSince(ctx, tx, domain.NotificationSilence, now.Add(-window))
		if err != nil {
			return err
		}
		switch {
		case recent >= int64(limit):
			out = SilenceExhausted
			return nil
		case recent > 0:
			out = SilenceRepeated
		default:
			out = SilenceFirst
		}
		_, err = repo.AppendNotification(ctx, tx, userID, domain.NotificationSilence, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// SilenceStats returns how many complaints userID filed and how many the
// others did.
func (c *Chores) SilenceStats(ctx context.Context, userID int64) (yours, others int64, err error) {
	return repo.SilenceStats(ctx, c.DB, userID)
}
