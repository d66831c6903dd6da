package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
)

// Profile is what the chat platform tells us about a person.
type Profile struct {
	ChatID    int64
	FirstName string
	LastName  string
	Nickname  string
}

// RegisterOutcome says what Register did.
type RegisterOutcome int

const (
	Created RegisterOutcome = iota + 1
	Reactivated
	AlreadyActive
)

// Users manages household membership.
type Users struct {
	DB *gorm.DB
}

// Active returns an active member or ErrNotFound.
func (s *Users) Active(ctx context.Context, chatID int64) (*domain.User, error) {
	u, err := repo.GetActiveUser(ctx, s.DB, chatID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return u, nil
}

// Register adds p as a member, restoring a soft-deleted record if one exists.
func (s *Users) Register(ctx context.Context, p Profile) (*domain.User, RegisterOutcome, error) {
	var (
		user *domain.User
		out  RegisterOutcome
	)
	err := repo.WithTx(ctx, s.DB, func(tx *gorm.DB) error {
		existing, err := repo.GetUserAnyState(ctx, tx, p.ChatID)
		switch {
		case err == nil && !existing.DeletedAt.Valid:
			user, out = existing, AlreadyActive
			return nil
		case err == nil:
			user = &domain.User{ChatID: p.ChatID, FirstName: p.FirstName, LastName: p.LastName, Nickname: p.Nickname}
			out = Reactivated
			return repo.RestoreUser(ctx, tx, user)
		case errors.Is(err, repo.ErrNotFound):
			user = &domain.User{ChatID: p.ChatID, FirstName: p.FirstName, LastName: p.LastName, Nickname: p.Nickname}
			out = Created
			return repo.CreateUser(ctx, tx, user)
		default:
			return err
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return user, out, nil
}

// Remove soft-deletes a member. History stays attributed to them.
func (s *Users) Remove(ctx context.Context, chatID int64) error {
	return mapRepoErr(repo.SoftDeleteUser(ctx, s.DB, chatID))
}

// Admins lists active administrators.
func (s *Users) Admins(ctx context.Context) ([]domain.User, error) {
	return repo.ListAdmins(ctx, s.DB)
}
