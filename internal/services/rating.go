package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
)

// Rating builds the chore leaderboard.
type Rating struct {
	DB *gorm.DB
}

// Leaderboard returns users with at least one chore, busiest first.
func (r *Rating) Leaderboard(ctx context.Context) ([]repo.RatingRow, error) {
	return repo.Rating(ctx, r.DB)
}

// Digest is the daily rating summary. Idle lists active users without any
// chore; Laggard is the last row of the leaderboard, nil when it is empty.
type Digest struct {
	Rows    []repo.RatingRow
	Idle    []domain.User
	Laggard *repo.RatingRow
}

// Digest assembles the leaderboard and who should be nudged.
func (r *Rating) Digest(ctx context.Context) (Digest, error) {
	rows, err := repo.Rating(ctx, r.DB)
	if err != nil {
		return Digest{}, err
	}
	users, err := repo.ListActiveUsers(ctx, r.DB)
	if err != nil {
		return Digest{}, err
	}
	seen := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		seen[row.UserID] = struct{}{}
	}
	d := Digest{Rows: rows}
	for _, u := range users {
		if _, ok := seen[u.ChatID]; !ok {
			d.Idle = append(d.Idle, u)
		}
	}
	if len(rows) > 0 {
		d.Laggard = &rows[len(rows)-1]
	}
	return d, nil
}
