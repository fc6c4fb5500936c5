package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks one live connection per player and fans outbound events to them
type Hub struct {
	// per-player connections (playerID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
}

// Message is the envelope for every frame pushed to a client
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ErrorPayload carries a machine-readable code alongside the message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run processes connection registrations. Outbound sends go straight through
// Send so callers learn whether delivery was possible.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// a new connection replaces any previous one for the same player; the old
	// one must not count as a disconnect
	if old, exists := h.clients[client.playerID]; exists {
		old.replaced.Store(true)
		close(old.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.String("playerId", client.playerID))
	}

	h.clients[client.playerID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("playerId", client.playerID),
		zap.Int("totalClients", len(h.clients)))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.playerID]; exists && current == client {
		delete(h.clients, client.playerID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("playerId", client.playerID),
			zap.Int("totalClients", len(h.clients)))
	}
}

// Send pushes one event to a player. It returns false when the player has no
// live connection or their send buffer is full, so the caller can treat them
// as disconnected. The read lock is held across the channel send: close only
// ever happens under the write lock, so a concurrent unregister cannot close
// the channel mid-send.
func (h *Hub) Send(playerID, msgType string, payload interface{}) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[playerID]
	if !exists {
		return false
	}

	select {
	case client.send <- &Message{Type: msgType, Payload: payload}:
		return true
	default:
		h.logger.Warn("Client send channel full",
			zap.String("playerId", playerID))
		return false
	}
}

// Connected reports whether a player currently holds a live connection
func (h *Hub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.clients[playerID]
	return exists
}
