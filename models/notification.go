package models

import (
	"time"
)

// Notification types emitted by the rule engine and the change monitor.
const (
	NotifADE3Days        = "ADE_3_DAYS"
	NotifADE5Days        = "ADE_5_DAYS"
	NotifADE8Days        = "ADE_8_DAYS"
	NotifDeadlineWarning = "DEADLINE_WARNING"
	NotifDeadlineOverdue = "DEADLINE_OVERDUE"
	NotifStatusChanged   = "status_changed"
	NotifShareReceived   = "share_received"
)

const (
	SeverityNotice  = "notice"
	SeverityWarning = "warning"
	SeverityUrgent  = "urgent"
)

// Notification references an order, it does not own it. The
// (service_order_id, user_id, type) triple is the dedup key for the
// threshold rules; uniqueness is enforced by the engine, not the schema.
type Notification struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ServiceOrderID uint         `gorm:"not null;index:idx_notif_dedup" json:"service_order_id"`
	ServiceOrder   ServiceOrder `gorm:"foreignKey:ServiceOrderID;constraint:OnDelete:CASCADE" json:"-"`
	UserID         uint         `gorm:"not null;index:idx_notif_dedup" json:"user_id"`
	Type           string       `gorm:"type:varchar(30);not null;index:idx_notif_dedup" json:"type"`
	Severity       string       `gorm:"type:varchar(10);not null;default:'notice'" json:"severity"`
	Message        string       `gorm:"type:text;not null" json:"message"`
	IsRead         bool         `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}
