package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dvcastilho/serviceorder-app/controllers"
	"github.com/dvcastilho/serviceorder-app/middlewares"
	"github.com/dvcastilho/serviceorder-app/services"
)

// SetupRouter builds the route table over the given database handle and
// behavioral services.
func SetupRouter(db *gorm.DB, engine *services.NotificationEngine, reaper *services.Reaper, shares *services.ShareService) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	// Registered before the route groups; gin snapshots the chain per
	// route, so anything added after registration would never run.
	r.Use(middlewares.NewRateLimiter(50, 1).RateLimit())

	orderSvc := services.NewOrderService(db)

	userCtrl := controllers.NewUserController(db)
	orderCtrl := controllers.NewOrderController(db, orderSvc)
	notifCtrl := controllers.NewNotificationController(db)
	shareCtrl := controllers.NewShareController(shares)
	adminCtrl := controllers.NewAdminController(db, engine, reaper)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Websocket handshake carries the token as a query parameter
	r.GET("/ws", middlewares.WebSocketAuthMiddleware(), controllers.WSHandler)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	{
		auth.GET("/profile", userCtrl.GetProfile)
		auth.POST("/logout", userCtrl.Logout)

		auth.GET("/orders", orderCtrl.GetAllOrders)
		auth.POST("/orders", orderCtrl.CreateOrder)
		auth.GET("/orders/trash", orderCtrl.GetTrash)
		auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
		auth.PATCH("/orders/:order_id", orderCtrl.UpdateOrder)
		auth.PATCH("/orders/:order_id/status", orderCtrl.UpdateOrderStatus)
		auth.DELETE("/orders/:order_id", orderCtrl.DeleteOrder)
		auth.POST("/orders/:order_id/restore", orderCtrl.RestoreOrder)
		auth.DELETE("/orders/:order_id/purge", orderCtrl.PurgeOrder)

		auth.GET("/notifications", notifCtrl.GetMyNotifications)
		auth.GET("/notifications/unread", notifCtrl.GetUnreadNotifications)
		auth.PATCH("/notifications/:notif_id/read", notifCtrl.MarkNotificationRead)
		auth.POST("/notifications/read-all", notifCtrl.MarkAllRead)

		auth.POST("/shares", shareCtrl.CreateShare)
		auth.GET("/shares/incoming", shareCtrl.GetIncomingShares)
		auth.GET("/shares/outgoing", shareCtrl.GetOutgoingShares)
		auth.POST("/shares/:share_id/accept", shareCtrl.AcceptShare)
		auth.POST("/shares/:share_id/reject", shareCtrl.RejectShare)

		admin := auth.Group("/admin")
		admin.Use(middlewares.AdminOnly())
		{
			admin.GET("/stats", adminCtrl.GetStats)
			admin.POST("/sweep", adminCtrl.RunSweep)
		}
	}

	return r
}
