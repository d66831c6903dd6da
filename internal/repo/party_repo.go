// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Party model.
//
// The "one active party per date" rule is enforced twice: a check-then-write
// inside the caller's transaction returns ErrDateConflict with a clear cause,
// and the partial unique index ux_parties_active_date turns any race that
// slips past the check into the same error.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

// PartyFields lists the mutable columns of a Party. Nil fields are left
// untouched by UpdateParty.
type PartyFields struct {
	Date      *domain.Date
	Guests    *int
	UsingSofa *bool
}

func (f PartyFields) empty() bool {
	return f.Date == nil && f.Guests == nil && f.UsingSofa == nil
}

// CreateParty inserts p after checking that its date is free.
func CreateParty(ctx context.Context, db *gorm.DB, p *domain.Party) error {
	return WithTx(ctx, db, func(tx *gorm.DB) error {
		if _, err := FindActivePartyByDate(ctx, tx, p.PartyDate, 0); err == nil {
			return ErrDateConflict
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := tx.Omit("Host").Create(p).Error; err != nil {
			if isDuplicate(err) {
				return ErrDateConflict
			}
			return err
		}
		return nil
	})
}

// FindActivePartyByDate returns the active party booked on d, ignoring the
// party with id exclude (0 excludes nothing).
func FindActivePartyByDate(ctx context.Context, db *gorm.DB, d domain.Date, exclude uint) (*domain.Party, error) {
	q := db.WithContext(ctx).Where("party_date = ?", d)
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	var p domain.Party
	if err := q.First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindActivePartyByID returns the active party with the given id.
func FindActivePartyByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Party, error) {
	var p domain.Party
	if err := db.WithContext(ctx).Preload("Host").First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActivePartiesFrom returns active parties on or after from, ordered by
// date. limit <= 0 means no limit.
func ListActivePartiesFrom(ctx context.Context, db *gorm.DB, from domain.Date, limit int) ([]domain.Party, error) {
	q := db.WithContext(ctx).Preload("Host").
		Where("party_date >= ?", from).
		Order("party_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Party
	err := q.Find(&out).Error
	return out, err
}

// ListActivePartiesBetween returns active parties with from <= date <= to.
func ListActivePartiesBetween(ctx context.Context, db *gorm.DB, from, to domain.Date) ([]domain.Party, error) {
	var out []domain.Party
	err := db.WithContext(ctx).Preload("Host").
		Where("party_date >= ? AND party_date <= ?", from, to).
		Order("party_date ASC").
		Find(&out).Error
	return out, err
}

// ListUserPartiesFrom returns the user's active parties on or after from.
func ListUserPartiesFrom(ctx context.Context, db *gorm.DB, userID int64, from domain.Date) ([]domain.Party, error) {
	var out []domain.Party
	err := db.WithContext(ctx).
		Where("user_id = ? AND party_date >= ?", userID, from).
		Order("party_date ASC").
		Find(&out).Error
	return out, err
}

// UpdateParty applies the non-nil fields to p. Moving a party onto a date
// held by another active party fails with ErrDateConflict.
func UpdateParty(ctx context.Context, db *gorm.DB, p *domain.Party, f PartyFields) error {
	if f.empty() {
		return nil
	}
	return WithTx(ctx, db, func(tx *gorm.DB) error {
		cols := map[string]any{}
		if f.Date != nil {
			if _, err := FindActivePartyByDate(ctx, tx, *f.Date, p.ID); err == nil {
				return ErrDateConflict
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
			cols["party_date"] = *f.Date
		}
		if f.Guests != nil {
			cols["guests_amount"] = *f.Guests
		}
		if f.UsingSofa != nil {
			cols["using_sofa"] = *f.UsingSofa
		}

		res := tx.Model(&domain.Party{}).Where("id = ?", p.ID).Updates(cols)
		if res.Error != nil {
			if isDuplicate(res.Error) {
				return ErrDateConflict
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if f.Date != nil {
			p.PartyDate = *f.Date
		}
		if f.Guests != nil {
			p.GuestsAmount = *f.Guests
		}
		if f.UsingSofa != nil {
			p.UsingSofa = *f.UsingSofa
		}
		return nil
	})
}

// SoftDeleteParty cancels a booking, freeing its date.
func SoftDeleteParty(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Party{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
