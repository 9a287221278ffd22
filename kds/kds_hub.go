package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub keeps the admin dashboards connected over websocket and fans order events out to
// them. A client whose write fails is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]string
	logger  logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
		logger:  logger,
	}
}

// Register adds conn. subject identifies the client in logs.
func (h *Hub) Register(conn *websocket.Conn, subject string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = subject
	h.logger.WithFields(logrus.Fields{"subject": subject, "clients": len(h.clients)}).Info("Dashboard connected")
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(conn)
}

func (h *Hub) remove(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	_ = conn.Close()
}

// Clients reports how many dashboards are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish broadcasts an event to every connected client.
func (h *Hub) Publish(event string, payload any) {
	data, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Error("Unable to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, subject := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.WithError(err).WithField("subject", subject).Warn("Dropping dashboard client")
			h.remove(conn)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		h.remove(conn)
	}
}
