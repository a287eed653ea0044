package controllers

import (
	"errors"
	"net/http"

	"github.com/dvcastilho/serviceorder-app/services"
	"github.com/dvcastilho/serviceorder-app/utils"
	"github.com/gin-gonic/gin"
)

var ErrNoPermission = errors.New("you don't have permission for this action")

// respondServiceError maps the service error taxonomy onto HTTP status
// codes. Anything unrecognized is a store-side failure.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrAuthorization):
		utils.RespondError(c, http.StatusForbidden, err)
	case errors.Is(err, services.ErrConflict):
		utils.RespondError(c, http.StatusConflict, err)
	default:
		utils.RespondError(c, http.StatusInternalServerError, err)
	}
}

// currentUserID pulls the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
