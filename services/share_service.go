package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvcastilho/serviceorder-app/database"
	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/realtime"
	"github.com/dvcastilho/serviceorder-app/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShareService implements the offer/accept/reject hand-off of an order
// between two users. An offer is finalized exactly once: the terminal
// check runs as a conditional update, so a double accept cannot clone the
// order twice.
//
// HideOnOffer decides whether offering tentatively soft-deletes the
// sender's copy. When true the order leaves the sender's active list
// while the offer is pending; reject restores it.
type ShareService struct {
	db          *gorm.DB
	HideOnOffer bool
}

func NewShareService(db *gorm.DB, hideOnOffer bool) *ShareService {
	return &ShareService{db: db, HideOnOffer: hideOnOffer}
}

// Offer creates a pending ShareOffer from fromUser to toUser.
func (s *ShareService) Offer(fromUser, toUser, orderID uint, message string) (*models.ShareOffer, error) {
	if fromUser == toUser {
		return nil, validationError("cannot share an order with yourself")
	}

	var recipient models.User
	if err := s.db.First(&recipient, toUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user %d", toUser)
		}
		return nil, fmt.Errorf("failed to fetch recipient: %w", err)
	}

	var order models.ServiceOrder
	err := s.db.Where("id = ? AND owner_id = ?", orderID, fromUser).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("order %d", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	if order.IsDeleted() {
		return nil, conflictError("order %d is in the recycle bin", orderID)
	}

	now := time.Now()
	offer := models.ShareOffer{
		Token:          uuid.NewString(),
		ServiceOrderID: order.ID,
		SharedBy:       fromUser,
		SharedWith:     toUser,
		Message:        message,
		HidSender:      s.HideOnOffer,
		SharedAt:       now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&offer).Error; err != nil {
			return fmt.Errorf("failed to create share offer: %w", err)
		}
		if err := database.RecordChange(tx, database.TableShareOffers, offer.ID,
			models.ChangeInsert, toUser, nil, nil); err != nil {
			return err
		}

		if s.HideOnOffer {
			if err := tx.Model(&models.ServiceOrder{}).Where("id = ?", order.ID).
				Updates(map[string]interface{}{"deleted_at": now, "updated_at": now}).Error; err != nil {
				return fmt.Errorf("failed to hide offered order: %w", err)
			}
		}

		notif := models.Notification{
			ServiceOrderID: order.ID,
			UserID:         toUser,
			Type:           models.NotifShareReceived,
			Severity:       models.SeverityNotice,
			Message:        fmt.Sprintf("An order for %s (%s) was shared with you", order.Customer, order.Equipment),
			CreatedAt:      now,
		}
		if err := tx.Create(&notif).Error; err != nil {
			return fmt.Errorf("failed to create share notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Share offer %d: order %d from user %d to user %d", offer.ID, order.ID, fromUser, toUser)
	realtime.NotifyUser(toUser, realtime.EventShareOffer, offer)
	return &offer, nil
}

// Accept finalizes the offer and clones the order for the recipient. Only
// the recipient may accept, and only while the offer is still pending.
func (s *ShareService) Accept(offerID, byUser uint) (*models.ServiceOrder, error) {
	offer, err := s.getOffer(offerID)
	if err != nil {
		return nil, err
	}
	if offer.SharedWith != byUser {
		return nil, authorizationError("offer %d is not addressed to user %d", offerID, byUser)
	}
	if !offer.IsPending() {
		return nil, conflictError("offer %d is already finalized", offerID)
	}

	var source models.ServiceOrder
	if err := s.db.First(&source, offer.ServiceOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("order %d no longer exists", offer.ServiceOrderID)
		}
		return nil, fmt.Errorf("failed to fetch shared order: %w", err)
	}

	now := time.Now()
	clone := models.ServiceOrder{
		OwnerID:   byUser,
		Customer:  source.Customer,
		Equipment: source.Equipment,
		Defect:    source.Defect,
		LaborCost: source.LaborCost,
		Status:    source.Status,
		StatusSet: source.StatusSet,
		Priority:  source.Priority,
		Deadline:  source.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Conditional update is the terminal-state guard: a concurrent
		// accept or reject wins the race and this one sees zero rows.
		result := tx.Model(&models.ShareOffer{}).
			Where("id = ? AND is_accepted IS NULL", offer.ID).
			Update("is_accepted", true)
		if result.Error != nil {
			return fmt.Errorf("failed to finalize offer: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return conflictError("offer %d is already finalized", offer.ID)
		}

		if err := tx.Create(&clone).Error; err != nil {
			return fmt.Errorf("failed to clone order: %w", err)
		}
		if err := database.RecordChange(tx, database.TableServiceOrders, clone.ID,
			models.ChangeInsert, byUser, nil, &clone.Status); err != nil {
			return err
		}

		// The recipient acted on the offer, its notification is read.
		if err := tx.Model(&models.Notification{}).
			Where("service_order_id = ? AND user_id = ? AND type = ?",
				offer.ServiceOrderID, byUser, models.NotifShareReceived).
			Update("is_read", true).Error; err != nil {
			return fmt.Errorf("failed to mark share notification read: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Share offer %d accepted by user %d, cloned order %d", offer.ID, byUser, clone.ID)
	realtime.NotifyUser(offer.SharedBy, realtime.EventShareResolved, map[string]interface{}{
		"offer_id": offer.ID,
		"accepted": true,
	})
	return &clone, nil
}

// Reject finalizes the offer negatively and puts the sender's copy back
// into their active list when the offering flow had hidden it.
func (s *ShareService) Reject(offerID, byUser uint) error {
	offer, err := s.getOffer(offerID)
	if err != nil {
		return err
	}
	if offer.SharedWith != byUser {
		return authorizationError("offer %d is not addressed to user %d", offerID, byUser)
	}
	if !offer.IsPending() {
		return conflictError("offer %d is already finalized", offerID)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ShareOffer{}).
			Where("id = ? AND is_accepted IS NULL", offer.ID).
			Update("is_accepted", false)
		if result.Error != nil {
			return fmt.Errorf("failed to finalize offer: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return conflictError("offer %d is already finalized", offer.ID)
		}

		// Only undo a hide this offer performed. A copy the sender binned
		// on their own stays in the recycle bin.
		if offer.HidSender {
			if err := tx.Model(&models.ServiceOrder{}).
				Where("id = ? AND owner_id = ? AND deleted_at IS NOT NULL", offer.ServiceOrderID, offer.SharedBy).
				Updates(map[string]interface{}{"deleted_at": nil, "updated_at": time.Now()}).Error; err != nil {
				return fmt.Errorf("failed to restore offered order: %w", err)
			}
		}

		if err := tx.Model(&models.Notification{}).
			Where("service_order_id = ? AND user_id = ? AND type = ?",
				offer.ServiceOrderID, byUser, models.NotifShareReceived).
			Update("is_read", true).Error; err != nil {
			return fmt.Errorf("failed to mark share notification read: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.InfoLogger.Printf("Share offer %d rejected by user %d", offer.ID, byUser)
	realtime.NotifyUser(offer.SharedBy, realtime.EventShareResolved, map[string]interface{}{
		"offer_id": offer.ID,
		"accepted": false,
	})
	return nil
}

// ListIncoming returns offers addressed to the user, newest first.
func (s *ShareService) ListIncoming(userID uint) ([]models.ShareOffer, error) {
	var offers []models.ShareOffer
	err := s.db.Preload("ServiceOrder").Where("shared_with = ?", userID).
		Order("shared_at DESC").Find(&offers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming offers: %w", err)
	}
	return offers, nil
}

// ListOutgoing returns offers the user has sent, newest first.
func (s *ShareService) ListOutgoing(userID uint) ([]models.ShareOffer, error) {
	var offers []models.ShareOffer
	err := s.db.Preload("ServiceOrder").Where("shared_by = ?", userID).
		Order("shared_at DESC").Find(&offers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing offers: %w", err)
	}
	return offers, nil
}

func (s *ShareService) getOffer(offerID uint) (*models.ShareOffer, error) {
	var offer models.ShareOffer
	err := s.db.First(&offer, offerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("offer %d", offerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch offer: %w", err)
	}
	return &offer, nil
}
