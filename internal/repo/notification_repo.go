// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the notification event log.
//
// Notifications are append-only: the only mutation after insert is the
// soft-delete marker. Timestamps are stored in UTC; callers convert local
// calendar boundaries before querying.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

// AppendNotification records an event for userID at the given instant.
// A zero at means "now".
func AppendNotification(ctx context.Context, db *gorm.DB, userID int64, t domain.NotificationType, at time.Time) (*domain.Notification, error) {
	if !t.Valid() {
		return nil, errors.New("unknown notification type")
	}
	if at.IsZero() {
		at = time.Now()
	}
	n := &domain.Notification{
		UserID:    userID,
		Type:      t,
		CreatedAt: at.UTC(),
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// CountNotificationsBetween counts active events of type t created in
// [from, to).
func CountNotificationsBetween(ctx context.Context, db *gorm.DB, t domain.NotificationType, from, to time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("type = ? AND created_at >= ? AND created_at < ?", t, from.UTC(), to.UTC()).
		Count(&n).Error
	return n, err
}

// CountNotificationsSince counts active events of type t created after since.
func CountNotificationsSince(ctx context.Context, db *gorm.DB, t domain.NotificationType, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("type = ? AND created_at > ?", t, since.UTC()).
		Count(&n).Error
	return n, err
}

// LastNotificationOf returns the most recent active event whose type is in
// types. Ties on created_at fall back to insertion order.
func LastNotificationOf(ctx context.Context, db *gorm.DB, types ...domain.NotificationType) (*domain.Notification, error) {
	if len(types) == 0 {
		return nil, ErrNotFound
	}
	var n domain.Notification
	err := db.WithContext(ctx).
		Where("type IN ?", types).
		Order("created_at DESC").
		Order("id DESC").
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// SoftDeleteNotification hides an event from every query.
func SoftDeleteNotification(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Notification{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
