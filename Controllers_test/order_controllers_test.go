package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dvcastilho/serviceorder-app/controllers"
	"github.com/dvcastilho/serviceorder-app/models"
	"github.com/dvcastilho/serviceorder-app/services"
	"github.com/dvcastilho/serviceorder-app/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.ServiceOrder{},
		&models.Notification{},
		&models.ShareOffer{},
		&models.DBChange{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	db.Create(&models.User{
		Name:     "Test User",
		Email:    "testuser@example.com",
		Password: "secret",
		Role:     "technician",
	})
	return db
}

// fakeAuth stands in for the JWT middleware in controller tests.
func fakeAuth(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", "technician")
		c.Next()
	}
}

func setupOrderRouter(db *gorm.DB, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	router.Use(fakeAuth(userID))

	orderCtrl := controllers.NewOrderController(db, services.NewOrderService(db))
	router.GET("/orders", orderCtrl.GetAllOrders)
	router.POST("/orders", orderCtrl.CreateOrder)
	router.GET("/orders/trash", orderCtrl.GetTrash)
	router.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	router.PATCH("/orders/:order_id/status", orderCtrl.UpdateOrderStatus)
	router.DELETE("/orders/:order_id", orderCtrl.DeleteOrder)
	router.POST("/orders/:order_id/restore", orderCtrl.RestoreOrder)
	router.DELETE("/orders/:order_id/purge", orderCtrl.PurgeOrder)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, url string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, url, body)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupOrderRouter(db, 1)

	// Create
	w := doJSON(t, router, "POST", "/orders", map[string]interface{}{
		"customer":   "Maria Souza",
		"equipment":  "Notebook Dell",
		"defect":     "does not power on",
		"status":     "ADE",
		"status_set": []string{"ADE"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	data := createResp["data"].(map[string]interface{})
	orderID := int(data["id"].(float64))
	url := "/orders/" + strconv.Itoa(orderID)

	// Detail
	w = doJSON(t, router, "GET", url, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Transition
	w = doJSON(t, router, "PATCH", url+"/status", map[string]interface{}{
		"status":     "EXT",
		"status_set": []string{"EXT", "ADE"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Soft delete -> trash -> restore
	w = doJSON(t, router, "DELETE", url, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", "/orders/trash", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var trashResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &trashResp))
	assert.Len(t, trashResp["data"], 1)

	w = doJSON(t, router, "POST", url+"/restore", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Purge
	w = doJSON(t, router, "DELETE", url+"/purge", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", url, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrderRejectsBadStatusSet(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupOrderRouter(db, 1)

	w := doJSON(t, router, "POST", "/orders", map[string]interface{}{
		"customer":   "Maria Souza",
		"equipment":  "Notebook Dell",
		"status":     "ADE",
		"status_set": []string{"EXT"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestoreLiveOrderIsNotFound(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)
	router := setupOrderRouter(db, 1)

	w := doJSON(t, router, "POST", "/orders", map[string]interface{}{
		"customer":   "Maria Souza",
		"equipment":  "Notebook Dell",
		"status":     "AVT",
		"status_set": []string{"AVT"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	data := createResp["data"].(map[string]interface{})
	orderID := int(data["id"].(float64))

	w = doJSON(t, router, "POST", "/orders/"+strconv.Itoa(orderID)+"/restore", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
