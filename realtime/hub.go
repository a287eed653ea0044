package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Event types
const (
	EventOrderUpdate     = "order_update"
	EventOrderDelete     = "order_delete"
	EventOrderRestore    = "order_restore"
	EventNotification    = "notification"
	EventShareOffer      = "share_offer"
	EventShareResolved   = "share_resolved"
	EventRecycleBinPurge = "recycle_bin_purge"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub holds every connected client keyed by the signed-in user, so
// alerts can be delivered to the session(s) of a single user.
type Hub struct {
	clients map[*websocket.Conn]uint // conn -> user id
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]uint),
}

// RegisterClient adds a connection for the given user.
func RegisterClient(conn *websocket.Conn, userID uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = userID
}

// UnregisterClient drops the connection and closes it.
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// NotifyUser sends an event to every session of one user.
func NotifyUser(userID uint, event string, data interface{}) {
	send(Message{Event: event, Data: data}, func(id uint) bool { return id == userID })
}

// Broadcast sends an event to every connected session.
func Broadcast(event string, data interface{}) {
	send(Message{Event: event, Data: data}, func(uint) bool { return true })
}

func send(msg Message, match func(uint) bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshalling message: %v", err)
		return
	}

	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	for conn, userID := range hub.clients {
		if !match(userID) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("Error writing to client: %v", err)
			conn.Close()
			delete(hub.clients, conn)
		}
	}
}
