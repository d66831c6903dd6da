// Package domain defines the persistence models for apartment members, chore
// and noise notifications, and party bookings. These types are mapped with
// GORM and form the core data layer of the bot.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// NotificationType enumerates the events members can report.
type NotificationType string

const (
	NotificationTrash            NotificationType = "trash"
	NotificationDishwasherLoad   NotificationType = "dishwasher_load"
	NotificationDishwasherUnload NotificationType = "dishwasher_unload"
	NotificationSilence          NotificationType = "silence"
)

// DishwasherTypes is the set used to derive the dishwasher state.
var DishwasherTypes = []NotificationType{NotificationDishwasherLoad, NotificationDishwasherUnload}

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTrash, NotificationDishwasherLoad, NotificationDishwasherUnload, NotificationSilence:
		return true
	}
	return false
}

// User is an apartment member, keyed by their messenger account id.
//
// Fields:
//   - ChatID: stable external identifier (primary key, never auto-assigned).
//   - FirstName / LastName / Nickname: display data captured at registration.
//   - IsAdmin: admins receive and resolve join requests.
//   - DeletedAt: soft deletion marker; a returning member is re-activated by
//     clearing it, so at most one record per ChatID ever exists.
type User struct {
	ChatID    int64          `json:"chat_id"    gorm:"primaryKey;autoIncrement:false"`
	FirstName string         `json:"first_name" gorm:"type:varchar(255);not null;default:''"`
	LastName  string         `json:"last_name"  gorm:"type:varchar(255);not null;default:''"`
	Nickname  string         `json:"nickname"   gorm:"type:varchar(255);not null;default:''"`
	IsAdmin   bool           `json:"is_admin"   gorm:"not null;default:false"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"column:deleted;index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// FullName joins first and last name, skipping empty parts.
func (u User) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Notification is an immutable, timestamped event reported by a member.
// Only the soft-delete marker may change after creation.
type Notification struct {
	ID        uint             `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    int64            `json:"user_id"    gorm:"not null;index"`
	Type      NotificationType `json:"type"       gorm:"type:varchar(32);not null;index:idx_notifications_type_created,priority:1"`
	CreatedAt time.Time        `json:"created_at" gorm:"not null;index:idx_notifications_type_created,priority:2"`
	DeletedAt gorm.DeletedAt   `json:"-"          gorm:"column:deleted;index"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ChatID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Party is a booking of the shared living room for one calendar day.
// No two active parties may share PartyDate; the partial unique index
// ux_parties_active_date is created by repo.AutoMigrate.
type Party struct {
	ID           uint           `json:"id"            gorm:"primaryKey;autoIncrement"`
	UserID       int64          `json:"user_id"       gorm:"not null;index"`
	PartyDate    Date           `json:"party_date"    gorm:"type:date;not null;index"`
	GuestsAmount int            `json:"guests_amount" gorm:"not null;check:guests_amount >= 1"`
	UsingSofa    bool           `json:"using_sofa"    gorm:"not null;default:false"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"column:deleted;index"`

	// Host is loaded on demand for listings and digests.
	Host User `json:"-" gorm:"foreignKey:UserID;references:ChatID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Party.
func (Party) TableName() string { return "parties" }
