package web

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardbridge/cardbridge/internal/core/services/events"
	"github.com/cardbridge/cardbridge/internal/telemetry"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Allow same-origin (no Origin header)
		if origin == "" {
			return true
		}

		// Browser extensions carry their extension origin.
		if strings.HasPrefix(origin, "chrome-extension://") || strings.HasPrefix(origin, "moz-extension://") {
			return true
		}

		// Local web clients.
		if strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "http://127.0.0.1") ||
			strings.HasPrefix(origin, "http://[::1]") {
			return true
		}

		log.Printf("WebSocket: Rejected origin: %s", origin)
		return false
	},
}

// WSManager bridges the event bus to WebSocket subscribers. Each connection
// gets its own bus subscription and writer goroutine, so one slow client only
// ever drops its own events.
type WSManager struct {
	bus *events.Bus

	mu      sync.Mutex
	clients map[*websocket.Conn]*events.Subscription
}

func NewWSManager(bus *events.Bus) *WSManager {
	return &WSManager{
		bus:     bus,
		clients: make(map[*websocket.Conn]*events.Subscription),
	}
}

// HandleWebSocket upgrades the connection and streams every event broadcast
// after attach. Authentication happens in middleware before this runs.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	sub := m.bus.Subscribe(events.DefaultBuffer)

	m.mu.Lock()
	m.clients[conn] = sub
	m.mu.Unlock()
	telemetry.SubscribersConnected.Inc()

	log.Printf("WebSocket connected: remote=%s", r.RemoteAddr)

	// Writer: pumps the subscription until it closes or a write fails.
	go func() {
		defer m.drop(conn, sub)
		for ev := range sub.Events() {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}()

	// Reader: clients send nothing meaningful; this only detects disconnect.
	go func() {
		defer m.drop(conn, sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Count returns the number of connected clients.
func (m *WSManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *WSManager) drop(conn *websocket.Conn, sub *events.Subscription) {
	sub.Close()
	conn.Close()

	m.mu.Lock()
	_, known := m.clients[conn]
	delete(m.clients, conn)
	m.mu.Unlock()

	if known {
		telemetry.SubscribersConnected.Dec()
		log.Printf("WebSocket disconnected: remote=%s", conn.RemoteAddr())
	}
}
