package handler

import (
	"batepapo/backend/internal/chathub"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The room is public; any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades to the realtime stream of the token's participant.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token, err := tokenFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
		return
	}
	name, err := validateToken(token, h.Secret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	// The token outlives the participant when it is swept or leaves.
	if _, err := h.Registry.Lookup(c.Request.Context(), name); err != nil {
		h.fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("WebSocket upgrade failed", "name", name, "err", err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, name, conn)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
