package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/realtime"
	"github.com/dvcastilho/serviceorder-app/utils"
	"gorm.io/gorm"
)

// RuleResult is what a threshold rule produces when it matches.
type RuleResult struct {
	Type     string
	Severity string
	Message  string
}

// Rule is a pure predicate over one order at one instant. It returns nil
// when the rule does not apply.
type Rule func(order *models.ServiceOrder, now time.Time) *RuleResult

// adeAgeRule fires the single highest matching ADE age threshold.
// Thresholds are checked from high to low so an order nine days into ADE
// produces ADE_8_DAYS and nothing else.
func adeAgeRule(order *models.ServiceOrder, now time.Time) *RuleResult {
	if order.Status != models.StatusADE {
		return nil
	}
	days := AgeInDays(order, now)
	switch {
	case days >= 8:
		return &RuleResult{
			Type:     models.NotifADE8Days,
			Severity: models.SeverityUrgent,
			Message:  fmt.Sprintf("Order for %s (%s) has been awaiting availability for %d days", order.Customer, order.Equipment, days),
		}
	case days >= 5:
		return &RuleResult{
			Type:     models.NotifADE5Days,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("Order for %s (%s) has been awaiting availability for %d days", order.Customer, order.Equipment, days),
		}
	case days >= 3:
		return &RuleResult{
			Type:     models.NotifADE3Days,
			Severity: models.SeverityNotice,
			Message:  fmt.Sprintf("Order for %s (%s) has been awaiting availability for %d days", order.Customer, order.Equipment, days),
		}
	}
	return nil
}

// deadlineRule fires when the commitment date is close or missed. Orders
// already in OSP are done and exempt.
func deadlineRule(order *models.ServiceOrder, now time.Time) *RuleResult {
	if order.Deadline == nil || order.Status == models.StatusOSP {
		return nil
	}
	daysUntil := order.Deadline.Sub(now).Hours() / 24
	if daysUntil <= 0 {
		return &RuleResult{
			Type:     models.NotifDeadlineOverdue,
			Severity: models.SeverityUrgent,
			Message:  fmt.Sprintf("Order for %s (%s) missed its deadline", order.Customer, order.Equipment),
		}
	}
	if daysUntil <= 2 {
		return &RuleResult{
			Type:     models.NotifDeadlineWarning,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("Order for %s (%s) is due within 2 days", order.Customer, order.Equipment),
		}
	}
	return nil
}

// EngineMetrics counts what the engine has done since boot.
type EngineMetrics struct {
	Evaluations       int64
	NotificationsSent int64
	DuplicatesSkipped int64
	FailedPasses      int64
}

// NotificationEngine runs the threshold rules over every active order on
// a timer and on demand from the change monitor. Deduplication lives in
// the notifications table, not in memory, so repeated passes and
// concurrent evaluators converge on the same rows.
type NotificationEngine struct {
	DB       *gorm.DB
	StopChan chan struct{}
	Interval time.Duration

	rules   []Rule
	metrics EngineMetrics
	mutex   sync.Mutex
}

func NewNotificationEngine(db *gorm.DB) *NotificationEngine {
	return &NotificationEngine{
		DB:       db,
		StopChan: make(chan struct{}),
		Interval: 5 * time.Minute,
		rules:    []Rule{adeAgeRule, deadlineRule},
	}
}

// Start launches the periodic evaluation loop, with one pass up front so
// a freshly booted process does not wait a full interval.
func (e *NotificationEngine) Start() {
	go func() {
		e.runPass(func() error { return e.EvaluateAll(time.Now()) })

		ticker := time.NewTicker(e.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runPass(func() error { return e.EvaluateAll(time.Now()) })
			case <-e.StopChan:
				return
			}
		}
	}()
}

func (e *NotificationEngine) Stop() {
	close(e.StopChan)
}

// runPass executes one evaluation pass. A failed pass is only logged: the
// pass is read-mostly and idempotent, so the next trigger repairs it.
func (e *NotificationEngine) runPass(pass func() error) {
	if err := pass(); err != nil {
		e.mutex.Lock()
		e.metrics.FailedPasses++
		e.mutex.Unlock()
		utils.ErrorLogger.Printf("Notification pass failed: %v", err)
	}
}

// EvaluateAll runs every rule over every non-deleted order.
func (e *NotificationEngine) EvaluateAll(now time.Time) error {
	var orders []models.ServiceOrder
	if err := e.DB.Where("deleted_at IS NULL").Find(&orders).Error; err != nil {
		return fmt.Errorf("failed to load orders for evaluation: %w", err)
	}
	return e.evaluate(orders, now)
}

// EvaluateOwner runs every rule over one owner's non-deleted orders. The
// change monitor calls this so a stored change is reflected promptly
// without waiting for the next tick.
func (e *NotificationEngine) EvaluateOwner(ownerID uint, now time.Time) error {
	var orders []models.ServiceOrder
	if err := e.DB.Where("owner_id = ? AND deleted_at IS NULL", ownerID).Find(&orders).Error; err != nil {
		return fmt.Errorf("failed to load orders for evaluation: %w", err)
	}
	return e.evaluate(orders, now)
}

func (e *NotificationEngine) evaluate(orders []models.ServiceOrder, now time.Time) error {
	e.mutex.Lock()
	e.metrics.Evaluations++
	e.mutex.Unlock()

	for i := range orders {
		order := &orders[i]
		for _, rule := range e.rules {
			result := rule(order, now)
			if result == nil {
				continue
			}
			if err := e.notifyOnce(order, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// notifyOnce inserts the notification unless the (order, user, type)
// triple already exists. The check-then-insert is not atomic against the
// store; two concurrent evaluators can in rare cases both insert, which
// is tolerated since the reader collapses duplicates by type.
func (e *NotificationEngine) notifyOnce(order *models.ServiceOrder, result *RuleResult) error {
	var existing models.Notification
	err := e.DB.Where("service_order_id = ? AND user_id = ? AND type = ?",
		order.ID, order.OwnerID, result.Type).First(&existing).Error
	if err == nil {
		e.mutex.Lock()
		e.metrics.DuplicatesSkipped++
		e.mutex.Unlock()
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing notification: %w", err)
	}

	notif := models.Notification{
		ServiceOrderID: order.ID,
		UserID:         order.OwnerID,
		Type:           result.Type,
		Severity:       result.Severity,
		Message:        result.Message,
		CreatedAt:      time.Now(),
	}
	if err := e.DB.Create(&notif).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	e.mutex.Lock()
	e.metrics.NotificationsSent++
	e.mutex.Unlock()

	utils.InfoLogger.Printf("Notification %s created for order %d (user %d)", notif.Type, order.ID, order.OwnerID)
	realtime.NotifyUser(order.OwnerID, realtime.EventNotification, notif)
	return nil
}

// Metrics returns a snapshot of the engine counters.
func (e *NotificationEngine) Metrics() EngineMetrics {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.metrics
}
