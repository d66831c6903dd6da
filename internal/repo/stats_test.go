package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

func TestRating_CountsChoresOnlyAndOrdersByTotal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "Ann")
	seedUser(t, db, 2, "Bob")
	seedUser(t, db, 3, "Cat") // no chores at all
	seedUser(t, db, 4, "Dan") // deleted member

	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	add := func(u int64, nt domain.NotificationType) *domain.Notification {
		n, err := AppendNotification(ctx, db, u, nt, at)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		return n
	}
	add(1, domain.NotificationTrash)
	add(2, domain.NotificationDishwasherLoad)
	add(2, domain.NotificationDishwasherUnload)
	add(2, domain.NotificationTrash)
	add(2, domain.NotificationSilence)
	add(1, domain.NotificationSilence)
	hidden := add(1, domain.NotificationTrash)
	if err := SoftDeleteNotification(ctx, db, hidden.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	add(4, domain.NotificationTrash)
	if err := SoftDeleteUser(ctx, db, 4); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	rows, err := Rating(ctx, db)
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v; want 2", rows)
	}
	if rows[0].UserID != 2 || rows[0].Total != 3 || rows[0].Dishwasher != 2 || rows[0].Trash != 1 {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[1].UserID != 1 || rows[1].Total != 1 || rows[1].Trash != 1 || rows[1].FirstName != "Ann" {
		t.Fatalf("second row = %+v", rows[1])
	}
}

func TestRating_Empty(t *testing.T) {
	db := newTestDB(t)
	rows, err := Rating(context.Background(), db)
	if err != nil || len(rows) != 0 {
		t.Fatalf("rows = %+v, %v", rows, err)
	}
}

func TestSilenceStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "Ann")
	seedUser(t, db, 2, "Bob")
	now := time.Now()

	AppendNotification(ctx, db, 1, domain.NotificationSilence, now)
	AppendNotification(ctx, db, 2, domain.NotificationSilence, now)
	AppendNotification(ctx, db, 2, domain.NotificationSilence, now)
	AppendNotification(ctx, db, 1, domain.NotificationTrash, now)
	gone, _ := AppendNotification(ctx, db, 2, domain.NotificationSilence, now)
	SoftDeleteNotification(ctx, db, gone.ID)

	yours, others, err := SilenceStats(ctx, db, 1)
	if err != nil || yours != 1 || others != 2 {
		t.Fatalf("stats = %d/%d, %v; want 1/2", yours, others, err)
	}
}
