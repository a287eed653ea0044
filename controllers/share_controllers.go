package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dvcastilho/serviceorder-app/services"
	"github.com/dvcastilho/serviceorder-app/utils"
)

type ShareController struct {
	Shares *services.ShareService
}

func NewShareController(shares *services.ShareService) *ShareController {
	return &ShareController{Shares: shares}
}

func shareIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("share_id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid share id")
	}
	return uint(id), nil
}

// CreateShare -> offer one of the caller's orders to another user
func (sc *ShareController) CreateShare(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	type reqBody struct {
		OrderID    uint   `json:"order_id" binding:"required"`
		SharedWith uint   `json:"shared_with" binding:"required"`
		Message    string `json:"message"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	offer, err := sc.Shares.Offer(userID, body.SharedWith, body.OrderID, body.Message)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Share offer created", offer)
}

// GetIncomingShares -> offers addressed to the caller
func (sc *ShareController) GetIncomingShares(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	offers, err := sc.Shares.ListIncoming(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Incoming share offers", offers)
}

// GetOutgoingShares -> offers the caller has sent
func (sc *ShareController) GetOutgoingShares(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}

	offers, err := sc.Shares.ListOutgoing(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Outgoing share offers", offers)
}

// AcceptShare -> recipient accepts, receiving a clone of the order
func (sc *ShareController) AcceptShare(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}
	shareID, err := shareIDParam(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	clone, err := sc.Shares.Accept(shareID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Share accepted", clone)
}

// RejectShare -> recipient declines, sender keeps the order
func (sc *ShareController) RejectShare(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, ErrNoPermission)
		return
	}
	shareID, err := shareIDParam(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := sc.Shares.Reject(shareID, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Share rejected", gin.H{"share_id": shareID})
}
