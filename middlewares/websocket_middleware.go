package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/dvcastilho/serviceorder-app/utils"
)

// WebSocketAuthMiddleware authenticates the websocket handshake, where
// the token arrives as a query parameter instead of a header.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(401)
			return
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			c.AbortWithStatus(401)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
