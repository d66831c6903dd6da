// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the processed-update ledger used to
// make webhook delivery safe to retry.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

// ClaimUpdate records updateID as processed. It returns ErrDuplicate when
// the id was already claimed and has not expired yet.
func ClaimUpdate(ctx context.Context, db *gorm.DB, updateID int64, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	rec := &domain.ProcessedUpdate{
		UpdateID:  updateID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return WithTx(ctx, db, func(tx *gorm.DB) error {
		// An expired claim may be reused; drop it first.
		if err := tx.Where("update_id = ? AND expires_at <= ?", updateID, now).
			Delete(&domain.ProcessedUpdate{}).Error; err != nil {
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// PurgeExpiredUpdates removes claims that expired before now.
func PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}

// ReleaseUpdate forgets a claim so that a redelivery is processed again.
func ReleaseUpdate(ctx context.Context, db *gorm.DB, updateID int64) error {
	return db.WithContext(ctx).Where("update_id = ?", updateID).Delete(&domain.ProcessedUpdate{}).Error
}
