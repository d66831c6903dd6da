package domain

import "time"

// ProcessedUpdate records an inbound messenger update that has already been
// dispatched. Webhook deliveries are retried by the platform on timeouts, so
// the update id is claimed once and later duplicates are acknowledged without
// running handlers again. Rows past ExpiresAt may be purged.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
