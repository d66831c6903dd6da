package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
	"github.com/tbourn/flatmate-bot/internal/scheduler"
)

// ---------- test helpers ----------

// t0 is a Sunday noon in UTC, well inside one calendar day.
var t0 = time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		u := &domain.User{ChatID: id, FirstName: fmt.Sprintf("U%d", id)}
		if err := repo.CreateUser(context.Background(), db, u); err != nil {
			t.Fatalf("seed %d: %v", id, err)
		}
	}
}

type fakeReminders struct {
	adds int
	at   map[string]time.Time
	jobs map[string]scheduler.Job
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{at: map[string]time.Time{}, jobs: map[string]scheduler.Job{}}
}

func (f *fakeReminders) AddOneShot(key string, at time.Time, job scheduler.Job) {
	f.adds++
	f.at[key] = at
	f.jobs[key] = job
}

func (f *fakeReminders) Cancel(key string) bool {
	_, ok := f.jobs[key]
	delete(f.jobs, key)
	delete(f.at, key)
	return ok
}

type fixture struct {
	db         *gorm.DB
	clk        *clockwork.FakeClock
	honesty    *Honesty
	reminders  *fakeReminders
	dishwasher *Dishwasher
	chores     *Chores
	parties    *Parties
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newSvcDB(t)
	seed(t, db, 1, 2, 3)
	clk := clockwork.NewFakeClockAt(t0)
	h := &Honesty{DB: db, Clock: clk, Loc: time.UTC, Limit: 3}
	rem := newFakeReminders()
	return &fixture{
		db:         db,
		clk:        clk,
		honesty:    h,
		reminders:  rem,
		dishwasher: &Dishwasher{DB: db, Clock: clk, Cycle: 4 * time.Minute, Honesty: h, Reminders: rem},
		chores:     &Chores{DB: db, Clock: clk, Honesty: h},
		parties:    &Parties{DB: db, Clock: clk, Loc: time.UTC, GuestsMin: 1, GuestsMax: 50},
	}
}
