package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvcastilho/serviceorder-app/database"
	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/realtime"
	"gorm.io/gorm"
)

// OrderService owns the service-order state machine: creation, status
// transitions, soft delete, restore and permanent removal. Every mutation
// writes a change-feed row in the same transaction.
type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// CreateOrderInput carries the caller-supplied fields of a new order.
type CreateOrderInput struct {
	Customer  string
	Equipment string
	Defect    string
	LaborCost float64
	Status    string
	StatusSet models.StatusSet
	Priority  string
	Deadline  *time.Time
}

func validateStatus(status string, set models.StatusSet) error {
	if strings.TrimSpace(status) == "" {
		return validationError("status must not be blank")
	}
	if len(set) == 0 {
		return validationError("status set must not be empty")
	}
	if !set.Contains(status) {
		return validationError("status %q is not in the status set", status)
	}
	return nil
}

// Create validates and persists a new order for the given owner.
func (s *OrderService) Create(ownerID uint, input CreateOrderInput) (*models.ServiceOrder, error) {
	if strings.TrimSpace(input.Customer) == "" {
		return nil, validationError("customer must not be blank")
	}
	if strings.TrimSpace(input.Equipment) == "" {
		return nil, validationError("equipment must not be blank")
	}
	if err := validateStatus(input.Status, input.StatusSet); err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if priority != models.PriorityNormal && priority != models.PriorityCritical {
		return nil, validationError("priority must be %q or %q", models.PriorityNormal, models.PriorityCritical)
	}

	now := time.Now()
	order := models.ServiceOrder{
		OwnerID:   ownerID,
		Customer:  input.Customer,
		Equipment: input.Equipment,
		Defect:    input.Defect,
		LaborCost: input.LaborCost,
		Status:    input.Status,
		StatusSet: input.StatusSet,
		Priority:  priority,
		Deadline:  input.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return database.RecordChange(tx, database.TableServiceOrders, order.ID,
			models.ChangeInsert, ownerID, nil, &order.Status)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Get returns one order owned by ownerID, deleted or not.
func (s *OrderService) Get(ownerID, orderID uint) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	err := s.db.Where("id = ? AND owner_id = ?", orderID, ownerID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("order %d", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return &order, nil
}

// ListActive returns the owner's orders outside the recycle bin.
func (s *OrderService) ListActive(ownerID uint) ([]models.ServiceOrder, error) {
	var orders []models.ServiceOrder
	err := s.db.Where("owner_id = ? AND deleted_at IS NULL", ownerID).
		Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListDeleted returns the owner's recycle bin.
func (s *OrderService) ListDeleted(ownerID uint) ([]models.ServiceOrder, error) {
	var orders []models.ServiceOrder
	err := s.db.Where("owner_id = ? AND deleted_at IS NOT NULL", ownerID).
		Order("deleted_at DESC").Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderInput carries optional business-field changes. Status is not
// part of it; status moves go through TransitionStatus.
type UpdateOrderInput struct {
	Customer  *string
	Equipment *string
	Defect    *string
	LaborCost *float64
	Priority  *string
	Deadline  *time.Time
	ClearDL   bool
}

// Update patches business fields of an active order.
func (s *OrderService) Update(ownerID, orderID uint, input UpdateOrderInput) (*models.ServiceOrder, error) {
	order, err := s.Get(ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsDeleted() {
		return nil, conflictError("order %d is in the recycle bin", orderID)
	}

	if input.Customer != nil {
		if strings.TrimSpace(*input.Customer) == "" {
			return nil, validationError("customer must not be blank")
		}
		order.Customer = *input.Customer
	}
	if input.Equipment != nil {
		if strings.TrimSpace(*input.Equipment) == "" {
			return nil, validationError("equipment must not be blank")
		}
		order.Equipment = *input.Equipment
	}
	if input.Defect != nil {
		order.Defect = *input.Defect
	}
	if input.LaborCost != nil {
		order.LaborCost = *input.LaborCost
	}
	if input.Priority != nil {
		if *input.Priority != models.PriorityNormal && *input.Priority != models.PriorityCritical {
			return nil, validationError("priority must be %q or %q", models.PriorityNormal, models.PriorityCritical)
		}
		order.Priority = *input.Priority
	}
	if input.ClearDL {
		order.Deadline = nil
	} else if input.Deadline != nil {
		order.Deadline = input.Deadline
	}
	order.UpdatedAt = time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(order).Error; err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return database.RecordChange(tx, database.TableServiceOrders, order.ID,
			models.ChangeUpdate, ownerID, &order.Status, &order.Status)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// TransitionStatus moves the order to a new primary status and status set.
// Entering ADE from a different status resets CreatedAt, which restarts the
// "days in ADE" clock. Staying in ADE, or moving between non-ADE statuses,
// leaves CreatedAt untouched.
func (s *OrderService) TransitionStatus(ownerID, orderID uint, newStatus string, newSet models.StatusSet) (*models.ServiceOrder, error) {
	if err := validateStatus(newStatus, newSet); err != nil {
		return nil, err
	}

	order, err := s.Get(ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsDeleted() {
		return nil, conflictError("order %d is in the recycle bin", orderID)
	}

	oldStatus := order.Status
	now := time.Now()
	if oldStatus != models.StatusADE && newStatus == models.StatusADE {
		order.CreatedAt = now
	}
	order.Status = newStatus
	order.StatusSet = newSet
	order.UpdatedAt = now

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(order).Error; err != nil {
			return fmt.Errorf("failed to transition order: %w", err)
		}
		return database.RecordChange(tx, database.TableServiceOrders, order.ID,
			models.ChangeUpdate, ownerID, &oldStatus, &newStatus)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SoftDelete moves the order into the recycle bin. Deleting an order that
// is already in the bin is a no-op returning the current state.
func (s *OrderService) SoftDelete(ownerID, orderID uint) (*models.ServiceOrder, error) {
	order, err := s.Get(ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsDeleted() {
		return order, nil
	}

	now := time.Now()
	order.DeletedAt = &now
	order.UpdatedAt = now

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(order).Error; err != nil {
			return fmt.Errorf("failed to soft delete order: %w", err)
		}
		return database.RecordChange(tx, database.TableServiceOrders, order.ID,
			models.ChangeUpdate, ownerID, &order.Status, &order.Status)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Restore takes the order out of the recycle bin. Restoring an order that
// is not deleted fails.
func (s *OrderService) Restore(ownerID, orderID uint) (*models.ServiceOrder, error) {
	order, err := s.Get(ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsDeleted() {
		return nil, notFoundError("order %d is not in the recycle bin", orderID)
	}

	order.DeletedAt = nil
	order.UpdatedAt = time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(order).Error; err != nil {
			return fmt.Errorf("failed to restore order: %w", err)
		}
		return database.RecordChange(tx, database.TableServiceOrders, order.ID,
			models.ChangeUpdate, ownerID, &order.Status, &order.Status)
	})
	if err != nil {
		return nil, err
	}

	realtime.NotifyUser(ownerID, realtime.EventOrderRestore, order)
	return order, nil
}

// HardDelete permanently removes the order. The only other issuer of hard
// deletes is the recycle-bin reaper.
func (s *OrderService) HardDelete(ownerID, orderID uint) error {
	order, err := s.Get(ownerID, orderID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ServiceOrder{}, order.ID).Error; err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return database.RecordChange(tx, database.TableServiceOrders, order.ID,
			models.ChangeDelete, ownerID, &order.Status, nil)
	})
}

// AgeInDays returns whole days elapsed since the order entered its current
// CreatedAt anchor. Non-negative as long as CreatedAt <= now.
func AgeInDays(order *models.ServiceOrder, now time.Time) int {
	return int(now.Sub(order.CreatedAt).Hours() / 24)
}
