package Controllers_test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/dvcastilho/serviceorder-app/controllers"
	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/services"
	"github.com/dvcastilho/serviceorder-app/utils"
)

func setupShareRouter(db *gorm.DB, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	router.Use(fakeAuth(userID))

	shareCtrl := controllers.NewShareController(services.NewShareService(db, false))
	router.POST("/shares", shareCtrl.CreateShare)
	router.GET("/shares/incoming", shareCtrl.GetIncomingShares)
	router.GET("/shares/outgoing", shareCtrl.GetOutgoingShares)
	router.POST("/shares/:share_id/accept", shareCtrl.AcceptShare)
	router.POST("/shares/:share_id/reject", shareCtrl.RejectShare)
	return router
}

func seedShareOrder(t *testing.T, db *gorm.DB, ownerID uint) models.ServiceOrder {
	t.Helper()
	order := models.ServiceOrder{
		OwnerID:   ownerID,
		Customer:  "Maria Souza",
		Equipment: "Notebook Dell",
		Status:    models.StatusAVT,
		StatusSet: models.StatusSet{models.StatusAVT},
		Priority:  models.PriorityNormal,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	assert.NoError(t, db.Create(&order).Error)
	return order
}

func TestShareOfferAcceptOverHTTP(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	db.Create(&models.User{Name: "Bruno", Email: "bruno@example.com", Password: "x", Role: "technician"})

	order := seedShareOrder(t, db, 1)

	senderRouter := setupShareRouter(db, 1)
	recipientRouter := setupShareRouter(db, 2)

	// Sender offers.
	w := doJSON(t, senderRouter, "POST", "/shares", map[string]interface{}{
		"order_id":    order.ID,
		"shared_with": 2,
		"message":     "taking over?",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	data := createResp["data"].(map[string]interface{})
	shareID := int(data["id"].(float64))
	acceptURL := "/shares/" + strconv.Itoa(shareID) + "/accept"

	// Offer shows up on both sides.
	w = doJSON(t, recipientRouter, "GET", "/shares/incoming", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var listResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp["data"], 1)

	w = doJSON(t, senderRouter, "GET", "/shares/outgoing", nil)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp["data"], 1)

	// Only the recipient may finalize.
	w = doJSON(t, senderRouter, "POST", acceptURL, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Recipient accepts and receives the clone.
	w = doJSON(t, recipientRouter, "POST", acceptURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var acceptResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &acceptResp))
	clone := acceptResp["data"].(map[string]interface{})
	assert.Equal(t, float64(2), clone["owner_id"])

	// Double accept is a conflict.
	w = doJSON(t, recipientRouter, "POST", acceptURL, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestShareRejectOverHTTP(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	db.Create(&models.User{Name: "Bruno", Email: "bruno@example.com", Password: "x", Role: "technician"})

	order := seedShareOrder(t, db, 1)
	senderRouter := setupShareRouter(db, 1)
	recipientRouter := setupShareRouter(db, 2)

	w := doJSON(t, senderRouter, "POST", "/shares", map[string]interface{}{
		"order_id":    order.ID,
		"shared_with": 2,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	data := createResp["data"].(map[string]interface{})
	rejectURL := "/shares/" + strconv.Itoa(int(data["id"].(float64))) + "/reject"

	w = doJSON(t, recipientRouter, "POST", rejectURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Terminal: a later accept fails.
	acceptURL := "/shares/" + strconv.Itoa(int(data["id"].(float64))) + "/accept"
	w = doJSON(t, recipientRouter, "POST", acceptURL, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// No clone was created for the recipient.
	var count int64
	assert.NoError(t, db.Model(&models.ServiceOrder{}).Where("owner_id = ?", 2).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
