package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dvcastilho/serviceorder-app/models"
)

func TestSweepRespectsRetentionWindow(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "ana")
	reaper := NewReaper(db)

	now := time.Now()
	fresh := seedOrder(t, db, owner, models.StatusAVT, now)
	expired := seedOrder(t, db, owner, models.StatusEXT, now)

	freshDeleted := now.AddDate(0, 0, -2)
	expiredDeleted := now.AddDate(0, 0, -4)
	assert.NoError(t, db.Model(&models.ServiceOrder{}).Where("id = ?", fresh.ID).
		Update("deleted_at", freshDeleted).Error)
	assert.NoError(t, db.Model(&models.ServiceOrder{}).Where("id = ?", expired.ID).
		Update("deleted_at", expiredDeleted).Error)

	purged, err := reaper.Sweep(now, 3)
	assert.NoError(t, err)
	assert.Equal(t, 1, purged)

	var remaining []models.ServiceOrder
	assert.NoError(t, db.Find(&remaining).Error)
	assert.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestSweepIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "ana")
	reaper := NewReaper(db)

	now := time.Now()
	expired := seedOrder(t, db, owner, models.StatusEXT, now)
	assert.NoError(t, db.Model(&models.ServiceOrder{}).Where("id = ?", expired.ID).
		Update("deleted_at", now.AddDate(0, 0, -4)).Error)

	purged, err := reaper.Sweep(now, 3)
	assert.NoError(t, err)
	assert.Equal(t, 1, purged)

	purged, err = reaper.Sweep(now, 3)
	assert.NoError(t, err)
	assert.Equal(t, 0, purged)
}

func TestSweepWithNothingToDo(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "ana")
	reaper := NewReaper(db)

	now := time.Now()
	seedOrder(t, db, owner, models.StatusAVT, now)

	purged, err := reaper.Sweep(now, 3)
	assert.NoError(t, err)
	assert.Equal(t, 0, purged)
}

func TestSweepTimeline(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "ana")
	reaper := NewReaper(db)

	t0 := time.Now()
	order := seedOrder(t, db, owner, models.StatusEXT, t0)
	assert.NoError(t, db.Model(&models.ServiceOrder{}).Where("id = ?", order.ID).
		Update("deleted_at", t0).Error)

	purged, err := reaper.Sweep(t0.AddDate(0, 0, 2), 3)
	assert.NoError(t, err)
	assert.Equal(t, 0, purged)

	purged, err = reaper.Sweep(t0.AddDate(0, 0, 4), 3)
	assert.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestSweepSparesPendingShareSource(t *testing.T) {
	db := setupTestDB(t)
	sender := seedUser(t, db, "ana")
	recipient := seedUser(t, db, "bruno")
	shares := NewShareService(db, true)
	reaper := NewReaper(db)

	order := seedOrder(t, db, sender, models.StatusAVT, time.Now())
	offer, err := shares.Offer(sender, recipient, order.ID, "")
	assert.NoError(t, err)

	// The offer hid the sender's copy. Age the bin entry past retention
	// while the offer is still pending.
	assert.NoError(t, db.Model(&models.ServiceOrder{}).Where("id = ?", order.ID).
		Update("deleted_at", time.Now().AddDate(0, 0, -4)).Error)

	purged, err := reaper.Sweep(time.Now(), DefaultRetentionDays)
	assert.NoError(t, err)
	assert.Equal(t, 0, purged)

	// The transfer still completes.
	clone, err := shares.Accept(offer.ID, recipient)
	assert.NoError(t, err)
	assert.Equal(t, recipient, clone.OwnerID)

	// Once the offer is finalized the expired source is fair game.
	purged, err = reaper.Sweep(time.Now(), DefaultRetentionDays)
	assert.NoError(t, err)
	assert.Equal(t, 1, purged)

	var remaining []models.ServiceOrder
	assert.NoError(t, db.Find(&remaining).Error)
	assert.Len(t, remaining, 1)
	assert.Equal(t, clone.ID, remaining[0].ID)
}
