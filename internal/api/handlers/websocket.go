package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uassett/Epsydev/internal/websocket"
)

// WebSocketHandler upgrades authenticated players to the realtime channel
type WebSocketHandler struct {
	hub  *websocket.Hub
	deps websocket.Deps
}

func NewWebSocketHandler(hub *websocket.Hub, deps websocket.Deps) *WebSocketHandler {
	return &WebSocketHandler{
		hub:  hub,
		deps: deps,
	}
}

// HandleWebSocket serves the matchmaking socket
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	playerID, exists := c.Get("playerId")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	websocket.ServeWs(h.hub, h.deps, c.Writer, c.Request, playerID.(string))
}
