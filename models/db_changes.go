package models

import (
	"time"
)

// Change-feed action types.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// DBChange is one row of the change feed. Rows are written in the same
// transaction as the mutation they describe and consumed exactly once by
// the change monitor (the Processed flag is the delivery dedup).
type DBChange struct {
	ID         uint      `gorm:"primaryKey"`
	TableName  string    `gorm:"type:varchar(50);not null;index:idx_table_action"`
	RecordID   uint      `gorm:"not null"`
	ActionType string    `gorm:"type:varchar(10);not null;index:idx_table_action"`
	OwnerID    uint      `gorm:"not null"`
	OldStatus  *string   `gorm:"type:varchar(30)"`
	NewStatus  *string   `gorm:"type:varchar(30)"`
	ChangedAt  time.Time `gorm:"not null"`
	Processed  bool      `gorm:"default:false;index:idx_processed"`
}
