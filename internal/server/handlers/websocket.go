// internal/server/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trendscope/internal/domain/trend"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 512,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedMessage is sent to report feed subscribers
type FeedMessage struct {
	Type   string         `json:"type"`
	Time   time.Time      `json:"time"`
	Report *trend.Summary `json:"report,omitempty"`
}

// Hub fans completed report summaries out to WebSocket clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	config  WebSocketConfig
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*feedClient]struct{}),
		config:  DefaultWebSocketConfig(),
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastReport sends the summary of r to every client. Slow clients whose
// buffer is full miss the message.
func (h *Hub) BroadcastReport(r *trend.Report) {
	summary := r.Summarize()
	data, err := json.Marshal(FeedMessage{Type: "report", Time: time.Now().UTC(), Report: &summary})
	if err != nil {
		slog.Error("failed to marshal report feed message", "report", r.ID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("dropping feed message for slow client")
		}
	}
}

func (h *Hub) register(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// feedClient represents a connected WebSocket client
type feedClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ReportFeedHandler upgrades the connection and streams report summaries
func ReportFeedHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade to WebSocket", "error", err)
			return
		}

		client := &feedClient{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, 16),
		}

		welcome, _ := json.Marshal(FeedMessage{Type: "welcome", Time: time.Now().UTC()})
		client.send <- welcome

		hub.register(client)

		go client.writePump()
		go client.readPump()

		slog.Info("report feed client connected", "remote", r.RemoteAddr)
	}
}

// readPump only watches for close and pong frames
func (c *feedClient) readPump() {
	config := c.hub.config

	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket error", "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *feedClient) writePump() {
	config := c.hub.config
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
