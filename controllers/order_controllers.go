package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/services"
	"github.com/dvcastilho/serviceorder-app/utils"
)

type OrderController struct {
	DB     *gorm.DB
	Orders *services.OrderService
}

func NewOrderController(db *gorm.DB, orders *services.OrderService) *OrderController {
	return &OrderController{DB: db, Orders: orders}
}

func orderIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("order_id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid order id")
	}
	return uint(id), nil
}

// GetAllOrders -> the caller's active orders
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	orders, err := oc.Orders.ListActive(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// GetTrash -> the caller's recycle bin
func (oc *OrderController) GetTrash(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	orders, err := oc.Orders.ListDeleted(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Recycle bin", orders)
}

// CreateOrder -> new service order for the caller
func (oc *OrderController) CreateOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	type reqBody struct {
		Customer  string     `json:"customer" binding:"required"`
		Equipment string     `json:"equipment" binding:"required"`
		Defect    string     `json:"defect"`
		LaborCost float64    `json:"labor_cost"`
		Status    string     `json:"status" binding:"required"`
		StatusSet []string   `json:"status_set" binding:"required"`
		Priority  string     `json:"priority"`
		Deadline  *time.Time `json:"deadline"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.Create(userID, services.CreateOrderInput{
		Customer:  body.Customer,
		Equipment: body.Equipment,
		Defect:    body.Defect,
		LaborCost: body.LaborCost,
		Status:    body.Status,
		StatusSet: models.StatusSet(body.StatusSet),
		Priority:  body.Priority,
		Deadline:  body.Deadline,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// GetOrderByID -> detail of one order, deleted or not
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}
	orderID, err := orderIDParam(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.Get(userID, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order detail", gin.H{
		"order":              order,
		"age_days":           services.AgeInDays(order, time.Now()),
		"labor_cost_display": utils.FormatCurrency(order.LaborCost),
	})
}

// UpdateOrder -> patch business fields
func (oc *OrderController) UpdateOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}
	orderID, err := orderIDParam(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	type reqBody struct {
		Customer      *string    `json:"customer"`
		Equipment     *string    `json:"equipment"`
		Defect        *string    `json:"defect"`
		LaborCost     *float64   `json:"labor_cost"`
		Priority      *string    `json:"priority"`
		Deadline      *time.Time `json:"deadline"`
		ClearDeadline bool       `json:"clear_deadline"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.Update(userID, orderID, services.UpdateOrderInput{
		Customer:  body.Customer,
		Equipment: body.Equipment,
		Defect:    body.Defect,
		LaborCost: body.LaborCost,
		Priority:  body.Priority,
		Deadline:  body.Deadline,
		ClearDL:   body.ClearDeadline,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order updated", order)
}

// UpdateOrderStatus -> status transition with the full status set
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}
	orderID, err := orderIDParam(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	type reqBody struct {
		Status    string   `json:"status" binding:"required"`
		StatusSet []string `json:"status_set" binding:"required"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.TransitionStatus(userID, orderID, body.Status, models.StatusSet(body.StatusSet))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// DeleteOrder -> soft delete into the recycle bin
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}
	orderID, err := orderIDParam(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.SoftDelete(userID, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order moved to recycle bin", order)
}

// RestoreOrder -> bring an order back from the recycle bin
func (oc *OrderController) RestoreOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}
	orderID, err := orderIDParam(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.Restore(userID, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order restored", order)
}

// PurgeOrder -> permanent removal by explicit owner action
func (oc *OrderController) PurgeOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}
	orderID, err := orderIDParam(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := oc.Orders.HardDelete(userID, orderID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order permanently deleted", gin.H{"order_id": orderID})
}
