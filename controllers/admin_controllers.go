package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/services"
	"github.com/dvcastilho/serviceorder-app/utils"
)

type AdminController struct {
	DB     *gorm.DB
	Engine *services.NotificationEngine
	Reaper *services.Reaper
}

func NewAdminController(db *gorm.DB, engine *services.NotificationEngine, reaper *services.Reaper) *AdminController {
	return &AdminController{DB: db, Engine: engine, Reaper: reaper}
}

// GetStats -> operational counters for the admin dashboard
func (ac *AdminController) GetStats(c *gin.Context) {
	var activeOrders, deletedOrders, pendingShares, unreadNotifs int64

	ac.DB.Model(&models.ServiceOrder{}).Where("deleted_at IS NULL").Count(&activeOrders)
	ac.DB.Model(&models.ServiceOrder{}).Where("deleted_at IS NOT NULL").Count(&deletedOrders)
	ac.DB.Model(&models.ShareOffer{}).Where("is_accepted IS NULL").Count(&pendingShares)
	ac.DB.Model(&models.Notification{}).Where("is_read = ?", false).Count(&unreadNotifs)

	metrics := ac.Engine.Metrics()

	utils.RespondJSON(c, http.StatusOK, "Stats", gin.H{
		"active_orders":        activeOrders,
		"recycle_bin_orders":   deletedOrders,
		"pending_shares":       pendingShares,
		"unread_notifications": unreadNotifs,
		"engine": gin.H{
			"evaluations":        metrics.Evaluations,
			"notifications_sent": metrics.NotificationsSent,
			"duplicates_skipped": metrics.DuplicatesSkipped,
			"failed_passes":      metrics.FailedPasses,
		},
	})
}

// RunSweep -> manual reaper run, admin only
func (ac *AdminController) RunSweep(c *gin.Context) {
	purged, err := ac.Reaper.Sweep(time.Now(), ac.Reaper.RetentionDays)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sweep finished", gin.H{"purged": purged})
}
