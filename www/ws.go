package www

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"maintcore/notify"
)

const maxWSConnections = 200

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NotificationHub pushes notification records to websocket clients. Each
// client may narrow the feed to one recipient role. It is a notify.Sink.
type NotificationHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]notify.Role
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{clients: make(map[*websocket.Conn]notify.Role)}
}

func (h *NotificationHub) Name() string { return "websocket" }

// Send writes rec to every matching client. Clients that fail the write are
// dropped; the record still counts as delivered.
func (h *NotificationHub) Send(_ context.Context, rec notify.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, role := range h.clients {
		if role != "" && role != rec.Role {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(rec); err != nil {
			log.Printf("ws: write error: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
	return nil
}

func (h *NotificationHub) register(conn *websocket.Conn, role notify.Role) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxWSConnections {
		return false
	}
	h.clients[conn] = role
	return true
}

func (h *NotificationHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *NotificationHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *NotificationHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]notify.Role)
}

// ServeWS upgrades the request. ?role= narrows the feed.
func (h *NotificationHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	role := notify.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade: %v", err)
		return
	}
	if !h.register(conn, role) {
		log.Printf("ws: connection rejected: max connections (%d) reached", maxWSConnections)
		conn.Close()
		return
	}

	// Clients only listen; reading detects the close.
	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
