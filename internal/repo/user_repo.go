// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// Reads apply GORM's soft-delete scope, so only active members are visible.
// Functions that must see tombstones (registration, re-activation) use
// Unscoped explicitly.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

// GetActiveUser returns the active member with the given chat id.
func GetActiveUser(ctx context.Context, db *gorm.DB, chatID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserAnyState returns the member record including soft-deleted ones.
func GetUserAnyState(ctx context.Context, db *gorm.DB, chatID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Unscoped().Where("chat_id = ?", chatID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new member. A unique violation is reported as
// ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// RestoreUser clears the soft-delete marker and refreshes display data.
func RestoreUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	res := db.WithContext(ctx).Unscoped().Model(&domain.User{}).
		Where("chat_id = ?", u.ChatID).
		Updates(map[string]any{
			"deleted":    nil,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"nickname":   u.Nickname,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	u.DeletedAt = gorm.DeletedAt{}
	return nil
}

// SoftDeleteUser marks the member inactive.
func SoftDeleteUser(ctx context.Context, db *gorm.DB, chatID int64) error {
	res := db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAdmins returns active admins ordered by chat id.
func ListAdmins(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).Where("is_admin = ?", true).Order("chat_id ASC").Find(&out).Error
	return out, err
}

// ListActiveUsers returns every active member ordered by chat id.
func ListActiveUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).Order("chat_id ASC").Find(&out).Error
	return out, err
}

// IsNotFound reports whether err means the record is missing.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
