// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind the
// leaderboard and the noise-complaint statistics.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

// RatingRow is one leaderboard line: a member and their chore counts.
type RatingRow struct {
	UserID     int64
	FirstName  string
	LastName   string
	Total      int64
	Dishwasher int64
	Trash      int64
}

// Rating aggregates active chore notifications per active member, busiest
// first. Noise complaints do not count towards the rating. Members without
// any chores are absent from the result.
//
// The join is written by hand, so soft-delete filters are explicit here.
func Rating(ctx context.Context, db *gorm.DB) ([]RatingRow, error) {
	var rows []RatingRow
	err := db.WithContext(ctx).
		Table("users AS u").
		Select(`u.chat_id AS user_id, u.first_name, u.last_name,
			COUNT(n.id) AS total,
			SUM(CASE WHEN n.type IN ? THEN 1 ELSE 0 END) AS dishwasher,
			SUM(CASE WHEN n.type = ? THEN 1 ELSE 0 END) AS trash`,
			domain.DishwasherTypes, domain.NotificationTrash).
		Joins("JOIN notifications AS n ON n.user_id = u.chat_id").
		Where("n.type <> ? AND n.deleted IS NULL AND u.deleted IS NULL", domain.NotificationSilence).
		Group("u.chat_id, u.first_name, u.last_name").
		Order("total DESC").
		Order("u.chat_id ASC").
		Scan(&rows).Error
	return rows, err
}

// SilenceStats returns how many active noise complaints userID filed and how
// many everyone else filed.
func SilenceStats(ctx context.Context, db *gorm.DB, userID int64) (yours, others int64, err error) {
	q := db.WithContext(ctx).Model(&domain.Notification{}).Where("type = ?", domain.NotificationSilence)

	if err = q.Session(&gorm.Session{}).Where("user_id = ?", userID).Count(&yours).Error; err != nil {
		return 0, 0, err
	}
	if err = q.Session(&gorm.Session{}).Where("user_id <> ?", userID).Count(&others).Error; err != nil {
		return 0, 0, err
	}
	return yours, others, nil
}
