package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&User{}, &Notification{}, &Party{}, &ProcessedUpdate{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():            "users",
		(Notification{}).TableName():    "notifications",
		(Party{}).TableName():           "parties",
		(ProcessedUpdate{}).TableName(): "processed_updates",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestNotificationType_Valid(t *testing.T) {
	for _, nt := range []NotificationType{NotificationTrash, NotificationDishwasherLoad, NotificationDishwasherUnload, NotificationSilence} {
		if !nt.Valid() {
			t.Fatalf("%q should be valid", nt)
		}
	}
	if NotificationType("laundry").Valid() {
		t.Fatalf("unknown type reported valid")
	}
}

func TestUser_FullName(t *testing.T) {
	if got := (User{FirstName: " Ann ", LastName: ""}).FullName(); got != "Ann" {
		t.Fatalf("FullName = %q", got)
	}
	if got := (User{FirstName: "Ann", LastName: "Lee"}).FullName(); got != "Ann Lee" {
		t.Fatalf("FullName = %q", got)
	}
}

func TestMigrations_SoftDeleteColumnAndScope(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	for _, tbl := range []any{&User{}, &Notification{}, &Party{}} {
		if !m.HasColumn(tbl, "deleted") {
			t.Fatalf("expected soft-delete column on %T", tbl)
		}
	}
	if !m.HasIndex(&Notification{}, "idx_notifications_type_created") {
		t.Fatalf("expected composite index on notifications")
	}

	u := User{ChatID: 42, FirstName: "Ann"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := db.Delete(&u).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	var n int64
	db.Model(&User{}).Where("chat_id = ?", 42).Count(&n)
	if n != 0 {
		t.Fatalf("default scope should hide soft-deleted rows, got %d", n)
	}
	db.Unscoped().Model(&User{}).Where("chat_id = ?", 42).Count(&n)
	if n != 1 {
		t.Fatalf("unscoped should see tombstone, got %d", n)
	}
}

func TestParty_DateColumnRoundTrip(t *testing.T) {
	db := newDomainDB(t)
	if err := db.Create(&User{ChatID: 1, FirstName: "Host"}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	p := Party{UserID: 1, PartyDate: NewDate(2024, time.February, 29), GuestsAmount: 5}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create party: %v", err)
	}

	var got Party
	if err := db.Preload("Host").First(&got, p.ID).Error; err != nil {
		t.Fatalf("load party: %v", err)
	}
	if got.PartyDate != p.PartyDate {
		t.Fatalf("party date = %v; want %v", got.PartyDate, p.PartyDate)
	}
	if got.Host.FirstName != "Host" {
		t.Fatalf("host not preloaded: %+v", got.Host)
	}

	var cnt int64
	db.Model(&Party{}).Where("party_date >= ?", NewDate(2024, time.February, 28)).Count(&cnt)
	if cnt != 1 {
		t.Fatalf("date comparison should match, got %d", cnt)
	}
}
