package models

import (
	"time"
)

// ShareOffer is the pending hand-off of an order between two users.
// IsAccepted nil = pending, true = accepted, false = rejected. Once
// non-nil the offer is terminal and never transitions again.
type ShareOffer struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	Token          string       `gorm:"type:varchar(36);uniqueIndex;not null" json:"token"`
	ServiceOrderID uint         `gorm:"not null;index" json:"service_order_id"`
	ServiceOrder   ServiceOrder `gorm:"foreignKey:ServiceOrderID" json:"service_order,omitempty"`
	SharedBy       uint         `gorm:"not null;index" json:"shared_by"`
	SharedWith     uint         `gorm:"not null;index" json:"shared_with"`
	Message        string       `gorm:"type:text" json:"message"`
	IsAccepted     *bool        `json:"is_accepted"`
	HidSender      bool         `gorm:"not null;default:false" json:"-"`
	SharedAt       time.Time    `gorm:"not null" json:"shared_at"`
}

// IsPending reports whether the offer can still be finalized.
func (s *ShareOffer) IsPending() bool {
	return s.IsAccepted == nil
}
