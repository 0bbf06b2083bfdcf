package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin filtering is the front end proxy's job
	},
}

// Handler upgrades HTTP requests to observer connections.
type Handler struct {
	hub *Hub
}

// NewHandler creates a WebSocket handler bound to the hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Handle performs the upgrade, registers the observer (which enqueues the
// snapshot) and then serves the connection until it closes.
func (h *Handler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn)
	h.hub.register(client)

	go client.writePump()
	client.readPump()
}
