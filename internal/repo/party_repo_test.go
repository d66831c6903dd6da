package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

func TestCreateParty_DateConflict_ThenFreedBySoftDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "Ann")
	seedUser(t, db, 2, "Bob")
	d := domain.NewDate(2030, time.June, 15)

	first := &domain.Party{UserID: 1, PartyDate: d, GuestsAmount: 10}
	if err := CreateParty(ctx, db, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("expected id assigned")
	}

	err := CreateParty(ctx, db, &domain.Party{UserID: 2, PartyDate: d, GuestsAmount: 3})
	if !errors.Is(err, ErrDateConflict) {
		t.Fatalf("expected ErrDateConflict, got %v", err)
	}

	if err := SoftDeleteParty(ctx, db, first.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	again := &domain.Party{UserID: 2, PartyDate: d, GuestsAmount: 3}
	if err := CreateParty(ctx, db, again); err != nil {
		t.Fatalf("create after delete: %v", err)
	}
	if _, err := FindActivePartyByID(ctx, db, first.ID); !IsNotFound(err) {
		t.Fatalf("deleted party should be hidden, got %v", err)
	}
}

func TestFindActivePartyByDate_Exclude(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "Ann")
	d := domain.NewDate(2030, time.June, 1)
	p := &domain.Party{UserID: 1, PartyDate: d, GuestsAmount: 2}
	if err := CreateParty(ctx, db, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	if got, err := FindActivePartyByDate(ctx, db, d, 0); err != nil || got.ID != p.ID {
		t.Fatalf("find = %+v, %v", got, err)
	}
	if _, err := FindActivePartyByDate(ctx, db, d, p.ID); !IsNotFound(err) {
		t.Fatalf("excluded party should not match, got %v", err)
	}
}

func TestUpdateParty_Fields_ConflictAndMissing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "Ann")
	a := &domain.Party{UserID: 1, PartyDate: domain.NewDate(2030, 7, 1), GuestsAmount: 2}
	b := &domain.Party{UserID: 1, PartyDate: domain.NewDate(2030, 7, 2), GuestsAmount: 2}
	for _, p := range []*domain.Party{a, b} {
		if err := CreateParty(ctx, db, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// Moving onto its own date is not a conflict.
	same := a.PartyDate
	if err := UpdateParty(ctx, db, a, PartyFields{Date: &same}); err != nil {
		t.Fatalf("self date update: %v", err)
	}

	taken := b.PartyDate
	if err := UpdateParty(ctx, db, a, PartyFields{Date: &taken}); !errors.Is(err, ErrDateConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	free := domain.NewDate(2030, 7, 3)
	guests := 9
	sofa := true
	if err := UpdateParty(ctx, db, a, PartyFields{Date: &free, Guests: &guests, UsingSofa: &sofa}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := FindActivePartyByID(ctx, db, a.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.PartyDate != free || got.GuestsAmount != 9 || !got.UsingSofa {
		t.Fatalf("fields not persisted: %+v", got)
	}
	if a.PartyDate != free || a.GuestsAmount != 9 || !a.UsingSofa {
		t.Fatalf("in-memory party not refreshed: %+v", a)
	}

	off := false
	if err := UpdateParty(ctx, db, a, PartyFields{UsingSofa: &off}); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	got, _ = FindActivePartyByID(ctx, db, a.ID)
	if got.UsingSofa {
		t.Fatalf("false must be written, got %+v", got)
	}

	if err := SoftDeleteParty(ctx, db, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := UpdateParty(ctx, db, b, PartyFields{Guests: &guests}); !IsNotFound(err) {
		t.Fatalf("updating deleted party should be not found, got %v", err)
	}
	if err := UpdateParty(ctx, db, b, PartyFields{}); err != nil {
		t.Fatalf("empty update should be a no-op, got %v", err)
	}
}

func TestListParties_Windows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, 1, "Ann")
	seedUser(t, db, 2, "Bob")

	today := domain.NewDate(2030, 8, 10)
	dates := []struct {
		user int64
		d    domain.Date
	}{
		{1, today.AddDays(-1)},
		{2, today},
		{1, today.AddDays(2)},
		{2, today.AddDays(3)},
		{1, today.AddDays(4)},
		{1, today.AddDays(9)},
	}
	for _, x := range dates {
		if err := CreateParty(ctx, db, &domain.Party{UserID: x.user, PartyDate: x.d, GuestsAmount: 1}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	closest, err := ListActivePartiesFrom(ctx, db, today, 3)
	if err != nil || len(closest) != 3 {
		t.Fatalf("closest = %d, %v", len(closest), err)
	}
	if closest[0].PartyDate != today || closest[2].PartyDate != today.AddDays(3) {
		t.Fatalf("closest order wrong: %v .. %v", closest[0].PartyDate, closest[2].PartyDate)
	}
	if closest[0].Host.FirstName != "Bob" {
		t.Fatalf("host not preloaded: %+v", closest[0].Host)
	}

	all, _ := ListActivePartiesFrom(ctx, db, today, 0)
	if len(all) != 5 {
		t.Fatalf("unlimited = %d; want 5", len(all))
	}

	window, _ := ListActivePartiesBetween(ctx, db, today, today.AddDays(3))
	if len(window) != 3 {
		t.Fatalf("window = %d; want 3", len(window))
	}

	mine, _ := ListUserPartiesFrom(ctx, db, 1, today)
	if len(mine) != 3 || mine[0].PartyDate != today.AddDays(2) {
		t.Fatalf("mine = %+v", mine)
	}
}
