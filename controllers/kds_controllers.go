package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/kds"
	"github.com/birchwood-sourdough/orders/middlewares"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// EventsController streams order events to admin dashboards.
type EventsController struct {
	hub      *kds.Hub
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
}

// NewEventsController accepts upgrades from allowedOrigins only; "*" allows any origin.
func NewEventsController(hub *kds.Hub, allowedOrigins []string, logger logrus.FieldLogger) *EventsController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &EventsController{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger: logger,
	}
}

// OrdersFeed -> endpoint WebSocket
func (ec *EventsController) OrdersFeed(c *gin.Context) {
	subject := c.ClientIP()
	if claims := middlewares.Claims(c); claims != nil {
		subject = claims.Role + "@" + claims.IP
	}

	ws, err := ec.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ec.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	ec.hub.Register(ws, subject)
	defer ec.hub.Unregister(ws)

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	}()

	// Clients only listen; reading keeps pongs flowing and notices disconnects.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
