package services

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
)

func TestChores_SilenceEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := []SilenceOutcome{SilenceFirst, SilenceRepeated, SilenceRepeated, SilenceExhausted, SilenceExhausted}
	for i, w := range want {
		got, err := f.chores.Silence(ctx, int64(i%3+1))
		if err != nil || got != w {
			t.Fatalf("complaint #%d = %v, %v; want %v", i+1, got, err, w)
		}
		f.clk.Advance(time.Minute)
	}

	// Exhausted complaints are not recorded.
	var n int64
	f.db.Model(&domain.Notification{}).Where("type = ?", domain.NotificationSilence).Count(&n)
	if n != 3 {
		t.Fatalf("silence rows = %d; want 3", n)
	}

	// Once the window has passed, the cycle starts over.
	f.clk.Advance(30 * time.Minute)
	if got, _ := f.chores.Silence(ctx, 1); got != SilenceFirst {
		t.Fatalf("after window = %v", got)
	}
}

func TestChores_SilenceStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo.AppendNotification(ctx, f.db, 1, domain.NotificationSilence, t0)
	repo.AppendNotification(ctx, f.db, 2, domain.NotificationSilence, t0)
	repo.AppendNotification(ctx, f.db, 3, domain.NotificationSilence, t0)

	yours, others, err := f.chores.SilenceStats(ctx, 1)
	if err != nil || yours != 1 || others != 2 {
		t.Fatalf("stats = %d/%d, %v", yours, others, err)
	}
}
