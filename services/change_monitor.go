package services

import (
	"fmt"
	"time"

	"github.com/dvcastilho/serviceorder-app/database"
	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/realtime"
	"github.com/dvcastilho/serviceorder-app/utils"
	"gorm.io/gorm"
)

// ChangeMonitor drains the change feed. Each row is handled once: the
// Processed flag flips inside the same transaction that reads the batch,
// so a change event is never delivered twice even though the feed itself
// is at-least-once. Missed ticks are harmless; rows wait for the next one.
type ChangeMonitor struct {
	DB       *gorm.DB
	StopChan chan struct{}
	Interval time.Duration
	Engine   *NotificationEngine
}

func NewChangeMonitor(db *gorm.DB, engine *NotificationEngine) *ChangeMonitor {
	return &ChangeMonitor{
		DB:       db,
		StopChan: make(chan struct{}),
		Interval: 1 * time.Second,
		Engine:   engine,
	}
}

func (cm *ChangeMonitor) Start() {
	go func() {
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.checkChanges()
			case <-cm.StopChan:
				return
			}
		}
	}()
}

func (cm *ChangeMonitor) Stop() {
	close(cm.StopChan)
}

func (cm *ChangeMonitor) checkChanges() {
	var changes []models.DBChange

	tx := cm.DB.Begin()

	if err := tx.Where("processed = ?", false).
		Order("changed_at ASC").
		Limit(100).
		Find(&changes).Error; err != nil {
		tx.Rollback()
		utils.ErrorLogger.Printf("Error fetching changes: %v", err)
		return
	}

	touchedOwners := make(map[uint]bool)

	for _, change := range changes {
		switch change.TableName {
		case database.TableServiceOrders:
			if err := cm.processOrderChange(tx, change); err != nil {
				tx.Rollback()
				utils.ErrorLogger.Printf("Error processing change %d: %v", change.ID, err)
				return
			}
			touchedOwners[change.OwnerID] = true
		case database.TableShareOffers:
			// The share service notifies both parties directly; the feed
			// row only drives re-evaluation for the recipient.
			touchedOwners[change.OwnerID] = true
		}

		if err := tx.Model(&models.DBChange{}).
			Where("id = ?", change.ID).
			Update("processed", true).Error; err != nil {
			tx.Rollback()
			utils.ErrorLogger.Printf("Error marking change as processed: %v", err)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		utils.ErrorLogger.Printf("Error committing change batch: %v", err)
		tx.Rollback()
		return
	}

	// Re-evaluate affected owners so threshold notifications follow a
	// change promptly instead of waiting for the engine tick.
	if cm.Engine != nil {
		now := time.Now()
		for ownerID := range touchedOwners {
			if err := cm.Engine.EvaluateOwner(ownerID, now); err != nil {
				utils.ErrorLogger.Printf("Re-evaluation for user %d failed: %v", ownerID, err)
			}
		}
	}
}

// processOrderChange handles one feed row inside the drain transaction.
// Anything it writes commits or rolls back together with the Processed
// flip, so a retried batch cannot emit the same event twice.
func (cm *ChangeMonitor) processOrderChange(tx *gorm.DB, change models.DBChange) error {
	switch change.ActionType {
	case models.ChangeDelete:
		realtime.NotifyUser(change.OwnerID, realtime.EventOrderDelete, map[string]interface{}{
			"order_id": change.RecordID,
		})
		return nil
	case models.ChangeUpdate:
		if change.OldStatus != nil && change.NewStatus != nil && *change.OldStatus != *change.NewStatus {
			if err := cm.notifyStatusChanged(tx, change); err != nil {
				return err
			}
		}
	}

	var order models.ServiceOrder
	if err := tx.First(&order, change.RecordID).Error; err != nil {
		// The row may already be gone again; the event is still consumed.
		utils.ErrorLogger.Printf("Error fetching order %d for change %d: %v", change.RecordID, change.ID, err)
		return nil
	}
	realtime.NotifyUser(order.OwnerID, realtime.EventOrderUpdate, order)
	return nil
}

// notifyStatusChanged emits one status_changed notification per observed
// transition. Unlike the threshold rules there is no content dedup here:
// every distinct change event produces a row, and the Processed flag on
// the feed guarantees each event is seen once.
func (cm *ChangeMonitor) notifyStatusChanged(tx *gorm.DB, change models.DBChange) error {
	notif := models.Notification{
		ServiceOrderID: change.RecordID,
		UserID:         change.OwnerID,
		Type:           models.NotifStatusChanged,
		Severity:       models.SeverityNotice,
		Message:        fmt.Sprintf("Order %d moved from %s to %s", change.RecordID, *change.OldStatus, *change.NewStatus),
		CreatedAt:      time.Now(),
	}
	if err := tx.Create(&notif).Error; err != nil {
		return fmt.Errorf("failed to create status-change notification: %w", err)
	}
	realtime.NotifyUser(change.OwnerID, realtime.EventNotification, notif)
	return nil
}
