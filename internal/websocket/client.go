package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uassett/Epsydev/internal/service"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to configured origins in production
		return true
	},
}

// QueueController is the slice of the matchmaking service the socket drives
type QueueController interface {
	JoinQueue(ctx context.Context, playerID, region, mode string, skillOverride *int) (time.Duration, error)
	LeaveQueue(ctx context.Context, playerID string) error
}

// DisconnectHandler reconciles a dropped player with queue and match state
type DisconnectHandler interface {
	HandleDisconnect(ctx context.Context, playerID string) error
}

// RateLimiter throttles queue joins per player
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Deps bundles what every connection needs to handle inbound commands
type Deps struct {
	Queue       QueueController
	Disconnects DisconnectHandler
	Limiter     RateLimiter
	JoinLimit   int
	JoinWindow  time.Duration
	Logger      *zap.Logger
}

// Client is one player's live connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan *Message
	playerID string
	deps     Deps

	// set when a newer connection for the same player takes over
	replaced atomic.Bool
}

func NewClient(hub *Hub, conn *websocket.Conn, playerID string, deps Deps) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan *Message, 256),
		playerID: playerID,
		deps:     deps,
	}
}

type inboundMessage struct {
	Type    string `json:"type"`
	Payload struct {
		Region string `json:"region"`
		Mode   string `json:"mode"`
		Skill  *int   `json:"skill,omitempty"`
	} `json:"payload"`
}

type queuedPayload struct {
	Region        string `json:"region"`
	Mode          string `json:"mode"`
	EstimatedWait int    `json:"estimated_wait"`
}

// readPump consumes inbound commands until the socket dies. A dead socket is
// a disconnect signal unless a newer connection already replaced this one.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()

		if !c.replaced.Load() {
			if err := c.deps.Disconnects.HandleDisconnect(context.Background(), c.playerID); err != nil {
				c.deps.Logger.Error("Failed to handle disconnect",
					zap.String("playerId", c.playerID),
					zap.Error(err))
			}
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.deps.Logger.Error("WebSocket read error",
					zap.String("playerId", c.playerID),
					zap.Error(err))
			}
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("bad_message", "message must be JSON with a type field")
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg inboundMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "join_queue":
		c.handleJoinQueue(ctx, msg.Payload.Region, msg.Payload.Mode, msg.Payload.Skill)

	case "leave_queue":
		if err := c.deps.Queue.LeaveQueue(ctx, c.playerID); err != nil {
			c.sendServiceError(err)
			return
		}
		c.reply("left", nil)

	default:
		c.sendError("unknown_type", "unsupported message type: "+msg.Type)
	}
}

func (c *Client) handleJoinQueue(ctx context.Context, region, mode string, skill *int) {
	if c.deps.Limiter != nil {
		allowed, err := c.deps.Limiter.Allow(ctx, "queue_join:"+c.playerID, c.deps.JoinLimit, c.deps.JoinWindow)
		if err != nil {
			c.deps.Logger.Warn("Rate limit check failed, allowing join",
				zap.String("playerId", c.playerID),
				zap.Error(err))
		} else if !allowed {
			c.sendError("rate_limited", "too many queue joins, slow down")
			return
		}
	}

	wait, err := c.deps.Queue.JoinQueue(ctx, c.playerID, region, mode, skill)
	if err != nil {
		c.sendServiceError(err)
		return
	}

	c.reply("queued", queuedPayload{
		Region:        region,
		Mode:          mode,
		EstimatedWait: int(wait.Seconds()),
	})
}

func (c *Client) reply(msgType string, payload interface{}) {
	select {
	case c.send <- &Message{Type: msgType, Payload: payload}:
	default:
		c.deps.Logger.Warn("Dropping reply, send channel full",
			zap.String("playerId", c.playerID),
			zap.String("type", msgType))
	}
}

func (c *Client) sendError(code, message string) {
	c.reply("error", ErrorPayload{Code: code, Message: message})
}

func (c *Client) sendServiceError(err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyQueued):
		c.sendError("already_queued", err.Error())
	case errors.Is(err, service.ErrNotQueued):
		c.sendError("not_queued", err.Error())
	case errors.Is(err, service.ErrPlayerBanned):
		c.sendError("banned", err.Error())
	case errors.Is(err, service.ErrPlayerInMatch):
		c.sendError("in_match", err.Error())
	case errors.Is(err, service.ErrPlayerNotFound):
		c.sendError("player_not_found", err.Error())
	case errors.Is(err, service.ErrInvalidMode):
		c.sendError("invalid_mode", err.Error())
	case errors.Is(err, service.ErrInvalidRegion):
		c.sendError("invalid_region", err.Error())
	case errors.Is(err, service.ErrQueueUnavailable):
		c.sendError("unavailable", "queue temporarily unavailable, try again")
	default:
		c.deps.Logger.Error("Unhandled service error on socket",
			zap.String("playerId", c.playerID),
			zap.Error(err))
		c.sendError("internal_error", "something went wrong")
	}
}

// writePump flushes hub messages and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.deps.Logger.Error("Failed to marshal message",
					zap.String("playerId", c.playerID),
					zap.Error(err))
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.deps.Logger.Error("Failed to write message",
					zap.String("playerId", c.playerID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and starts the connection's pumps
func ServeWs(hub *Hub, deps Deps, w http.ResponseWriter, r *http.Request, playerID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		deps.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := NewClient(hub, conn, playerID, deps)
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
