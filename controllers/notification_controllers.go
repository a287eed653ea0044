package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/utils"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GetMyNotifications -> all of the caller's notifications, newest first
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	var notifs []models.Notification
	if err := nc.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Find(&notifs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications", notifs)
}

// GetUnreadNotifications -> only unread ones
func (nc *NotificationController) GetUnreadNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	var notifs []models.Notification
	if err := nc.DB.Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC").Find(&notifs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Unread notifications", notifs)
}

// MarkNotificationRead -> flip is_read on one notification
func (nc *NotificationController) MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	id, err := strconv.Atoi(c.Param("notif_id"))
	if err != nil || id <= 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid notification id"))
		return
	}

	result := nc.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("notification not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", gin.H{"notif_id": id})
}

// MarkAllRead -> flip is_read on everything the caller has
func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	result := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked as read", gin.H{
		"updated": result.RowsAffected,
	})
}
