package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dvcastilho/serviceorder-app/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler -> websocket endpoint for one-shot alerts
func WSHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	realtime.RegisterClient(ws, userID)

	// Drain the connection until the client goes away.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	realtime.UnregisterClient(ws)
}
