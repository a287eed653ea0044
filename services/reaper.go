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

// DefaultRetentionDays is how long a soft-deleted order stays in the
// recycle bin before the reaper purges it.
const DefaultRetentionDays = 3

// Reaper permanently deletes orders whose recycle-bin retention has
// elapsed. It is the only scheduled issuer of hard deletes.
type Reaper struct {
	DB            *gorm.DB
	StopChan      chan struct{}
	Interval      time.Duration
	RetentionDays int
}

func NewReaper(db *gorm.DB) *Reaper {
	return &Reaper{
		DB:            db,
		StopChan:      make(chan struct{}),
		Interval:      30 * time.Minute,
		RetentionDays: DefaultRetentionDays,
	}
}

func (r *Reaper) Start() {
	go func() {
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := r.Sweep(time.Now(), r.RetentionDays); err != nil {
					utils.ErrorLogger.Printf("Reaper sweep failed: %v", err)
				}
				// Change-feed hygiene rides along with the sweep.
				if _, err := database.PruneProcessed(r.DB, 24*time.Hour); err != nil {
					utils.ErrorLogger.Printf("Change-feed prune failed: %v", err)
				}
			case <-r.StopChan:
				return
			}
		}
	}()
	utils.InfoLogger.Println("Recycle-bin reaper started")
}

func (r *Reaper) Stop() {
	close(r.StopChan)
}

// Sweep purges every order soft-deleted more than retentionDays ago and
// returns the number purged. Zero matches is a successful no-op, and
// repeating a sweep never purges anything inside the window.
//
// Orders referenced by a pending share offer are skipped even when their
// bin entry has expired: the offering flow may have hidden the sender's
// copy, and purging it would strand the recipient's accept. The source
// becomes sweepable again once the offer is finalized.
func (r *Reaper) Sweep(now time.Time, retentionDays int) (int, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	pending := r.DB.Model(&models.ShareOffer{}).
		Select("service_order_id").
		Where("is_accepted IS NULL")

	var expired []models.ServiceOrder
	err := r.DB.Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Where("id NOT IN (?)", pending).
		Find(&expired).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query expired orders: %w", err)
	}

	purged := 0
	for i := range expired {
		order := expired[i]
		err := r.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.ServiceOrder{}, order.ID).Error; err != nil {
				return fmt.Errorf("failed to purge order %d: %w", order.ID, err)
			}
			return database.RecordChange(tx, database.TableServiceOrders, order.ID,
				models.ChangeDelete, order.OwnerID, &order.Status, nil)
		})
		if err != nil {
			utils.ErrorLogger.Printf("Reaper: %v", err)
			continue
		}
		purged++
		realtime.NotifyUser(order.OwnerID, realtime.EventRecycleBinPurge, map[string]interface{}{
			"order_id": order.ID,
		})
	}

	if purged > 0 {
		utils.InfoLogger.Printf("Reaper purged %d expired orders", purged)
	}
	return purged, nil
}
