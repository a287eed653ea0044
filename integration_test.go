package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/router"
	"github.com/dvcastilho/serviceorder-app/services"
	"github.com/dvcastilho/serviceorder-app/utils"
)

func setupIntegration(t *testing.T) (*gin.Engine, *gorm.DB, *services.NotificationEngine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.InitLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ServiceOrder{},
		&models.Notification{},
		&models.ShareOffer{},
		&models.DBChange{},
	))

	// Services are built but not started: the test drives them directly
	// so nothing races the assertions.
	engine := services.NewNotificationEngine(db)
	reaper := services.NewReaper(db)
	shares := services.NewShareService(db, true)

	return router.SetupRouter(db, engine, reaper, shares), db, engine
}

func request(t *testing.T, r *gin.Engine, method, url, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func signUpAndLogin(t *testing.T, r *gin.Engine, name, email string) string {
	t.Helper()
	w := request(t, r, "POST", "/register", "", map[string]interface{}{
		"name":     name,
		"email":    email,
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(t, r, "POST", "/login", "", map[string]interface{}{
		"email":    email,
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeData(t, w)["token"].(string)
}

// End to end over the real route table: two technicians sign up, one
// opens an order that sits in ADE long enough to alarm, transfers it,
// and the other takes it over.
func TestServiceOrderEndToEnd(t *testing.T) {
	r, db, engine := setupIntegration(t)

	anaToken := signUpAndLogin(t, r, "Ana", "ana@example.com")
	brunoToken := signUpAndLogin(t, r, "Bruno", "bruno@example.com")

	// Ana opens an order.
	w := request(t, r, "POST", "/orders", anaToken, map[string]interface{}{
		"customer":   "Maria Souza",
		"equipment":  "Notebook Dell",
		"defect":     "does not power on",
		"status":     "ADE",
		"status_set": []string{"ADE"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := int(decodeData(t, w)["id"].(float64))
	orderURL := "/orders/" + strconv.Itoa(orderID)

	// Backdate it six days so the ADE age rule is already true.
	require.NoError(t, db.Model(&models.ServiceOrder{}).Where("id = ?", orderID).
		Update("created_at", time.Now().AddDate(0, 0, -6)).Error)

	require.NoError(t, engine.EvaluateAll(time.Now()))

	w = request(t, r, "GET", "/notifications/unread", anaToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notifResp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notifResp))
	notifs := notifResp["data"].([]interface{})
	require.Len(t, notifs, 1)
	first := notifs[0].(map[string]interface{})
	assert.Equal(t, models.NotifADE5Days, first["type"])

	// Leaving ADE resets the clock; coming back starts it fresh.
	w = request(t, r, "PATCH", orderURL+"/status", anaToken, map[string]interface{}{
		"status":     "EXT",
		"status_set": []string{"EXT"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = request(t, r, "PATCH", orderURL+"/status", anaToken, map[string]interface{}{
		"status":     "ADE",
		"status_set": []string{"ADE"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var refreshed models.ServiceOrder
	require.NoError(t, db.First(&refreshed, orderID).Error)
	assert.Zero(t, services.AgeInDays(&refreshed, time.Now()))

	// Ana offers the order to Bruno. Hide-on-offer moves her copy to
	// the recycle bin while the offer is pending.
	w = request(t, r, "POST", "/shares", anaToken, map[string]interface{}{
		"order_id":    orderID,
		"shared_with": 2,
		"message":     "your customer, I think",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	shareID := int(decodeData(t, w)["id"].(float64))

	w = request(t, r, "GET", "/orders", anaToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ordersResp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ordersResp))
	assert.Empty(t, ordersResp["data"])

	// Bruno sees it incoming and accepts; the clone is his.
	w = request(t, r, "GET", "/shares/incoming", brunoToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, "POST", "/shares/"+strconv.Itoa(shareID)+"/accept", brunoToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	clone := decodeData(t, w)
	assert.Equal(t, float64(2), clone["owner_id"])
	assert.Equal(t, "Maria Souza", clone["customer"])

	w = request(t, r, "GET", "/orders", brunoToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ordersResp))
	assert.Len(t, ordersResp["data"], 1)

	// Accepting twice is rejected and Ana cannot touch Bruno's clone.
	w = request(t, r, "POST", "/shares/"+strconv.Itoa(shareID)+"/accept", brunoToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	cloneID := int(clone["id"].(float64))
	w = request(t, r, "GET", "/orders/"+strconv.Itoa(cloneID), anaToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGeneralRateLimiterApplies(t *testing.T) {
	r, _, _ := setupIntegration(t)

	// 60 rapid requests from one client must trip the 50/s window.
	saw429 := false
	for i := 0; i < 60; i++ {
		w := request(t, r, "GET", "/ping", "", nil)
		if w.Code == http.StatusTooManyRequests {
			saw429 = true
		}
	}
	assert.True(t, saw429)
}

func TestRoutesRequireAuth(t *testing.T) {
	r, _, _ := setupIntegration(t)

	for _, url := range []string{"/orders", "/notifications", "/shares/incoming", "/profile"} {
		w := request(t, r, "GET", url, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, url)
	}

	w := request(t, r, "GET", "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
