package database

import (
	"time"

	"github.com/dvcastilho/serviceorder-app/models"
	"gorm.io/gorm"
)

// Table names recorded in the change feed.
const (
	TableServiceOrders = "service_orders"
	TableShareOffers   = "share_offers"
)

// RecordChange appends a change-feed row. Callers pass the transaction of
// the mutation itself so the row becomes visible if and only if the
// mutation commits.
func RecordChange(tx *gorm.DB, table string, recordID uint, action string, ownerID uint, oldStatus, newStatus *string) error {
	change := models.DBChange{
		TableName:  table,
		RecordID:   recordID,
		ActionType: action,
		OwnerID:    ownerID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ChangedAt:  time.Now(),
	}
	return tx.Create(&change).Error
}

// PruneProcessed removes processed change rows older than the given age.
// The feed is an outbox, not an audit log; consumed rows have no value.
func PruneProcessed(db *gorm.DB, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := db.Where("processed = ? AND changed_at < ?", true, cutoff).
		Delete(&models.DBChange{})
	return result.RowsAffected, result.Error
}
