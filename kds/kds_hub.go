package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/utils"
)

const writeWait = 5 * time.Second

type Message struct {
	Event   string      `json:"event"`
	FloorID uint        `json:"floor_id,omitempty"`
	Data    interface{} `json:"data"`
}

type client struct {
	role    string
	floorID uint // 0 = semua floor
}

// Hub menampung semua dashboard (admin, staff, host) yang terhubung dan
// menyiarkan event denah ke mereka
type Hub struct {
	clients map[*websocket.Conn]client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]client)}
}

var _ floorplan.Notifier = (*Hub)(nil)

// RegisterClient -> menambahkan connection dengan role dan floor yang dipantau
func (h *Hub) RegisterClient(conn *websocket.Conn, role string, floorID uint) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = client{role: role, floorID: floorID}
	utils.InfoLogger.Printf("Dashboard client connected (role=%s, floor=%d, total=%d)", role, floorID, len(h.clients))
}

// UnregisterClient -> melepaskan connection
func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Notify menyiarkan event engine ke dashboard yang memantau floor tersebut
func (h *Hub) Notify(e floorplan.Event) {
	h.BroadcastMessage(Message{Event: e.Type, FloorID: e.FloorID, Data: e.Data})
}

// BroadcastMessage -> broadcast pesan umum
func (h *Hub) BroadcastMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Errorf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, c := range h.clients {
		if c.floorID != 0 && msg.FloorID != 0 && c.floorID != msg.FloorID {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Errorf("Error sending %s to client with role %s: %v", msg.Event, c.role, err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}
