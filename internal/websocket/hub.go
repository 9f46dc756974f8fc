package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"claimboard/internal/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Heartbeat interval for version checks. Clients re-fetch /getAllUsers
	// at most once per interval.
	versionHeartbeatInterval = 2 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// VersionSource is where the hub reads the leaderboard version;
// RedisRepository implements it
type VersionSource interface {
	GetLeaderboardVersion(ctx context.Context) (int64, error)
	GetLastChange(ctx context.Context) (string, error)
}

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and broadcasts version changes
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	source     VersionSource
	interval   time.Duration
	done       chan struct{}

	mu          sync.RWMutex
	lastVersion int64
}

// VersionUpdate represents the version heartbeat message
type VersionUpdate struct {
	Type    string `json:"type"`
	Version int64  `json:"version"`
	EntryID string `json:"entryId,omitempty"`
}

// NewHub creates a new WebSocket hub
func NewHub(source VersionSource) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		source:     source,
		interval:   versionHeartbeatInterval,
		done:       make(chan struct{}),
	}
}

// Run starts the WebSocket hub and blocks until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	logger.Info("WebSocket hub started")
	defer close(h.done)

	versionTicker := time.NewTicker(h.interval)
	defer versionTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("Client connected (total: %d)", total)

			h.sendInitialVersion(ctx, client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-versionTicker.C:
			h.checkAndBroadcastVersion(ctx)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Info("WebSocket hub shutting down")
			return
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	logger.Info("Client disconnected (total: %d)", total)
}

// checkAndBroadcastVersion broadcasts when the version has moved since the last check
func (h *Hub) checkAndBroadcastVersion(ctx context.Context) {
	currentVersion, err := h.source.GetLeaderboardVersion(ctx)
	if err != nil {
		logger.Error("Failed to get leaderboard version: %v", err)
		return
	}

	if currentVersion == h.lastVersion {
		return
	}
	h.lastVersion = currentVersion

	message, err := h.versionMessage(ctx, currentVersion)
	if err != nil {
		logger.Error("Failed to marshal version update: %v", err)
		return
	}

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, skip this client
			logger.Warning("Client send buffer full, skipping")
		}
	}
	h.mu.RUnlock()
}

func (h *Hub) sendInitialVersion(ctx context.Context, client *Client) {
	currentVersion, err := h.source.GetLeaderboardVersion(ctx)
	if err != nil {
		logger.Error("Failed to get initial version: %v", err)
		return
	}

	if h.lastVersion == 0 {
		h.lastVersion = currentVersion
	}

	message, err := h.versionMessage(ctx, currentVersion)
	if err != nil {
		logger.Error("Failed to marshal initial version: %v", err)
		return
	}

	select {
	case client.send <- message:
	case <-time.After(2 * time.Second):
		logger.Warning("Timeout sending initial version, client may be slow")
	}
}

func (h *Hub) versionMessage(ctx context.Context, version int64) ([]byte, error) {
	update := VersionUpdate{
		Type:    "VERSION_UPDATE",
		Version: version,
	}
	if entryID, err := h.source.GetLastChange(ctx); err == nil {
		update.EntryID = entryID
	}
	return json.Marshal(update)
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		// Client messages are ignored; reading only detects disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warning("WebSocket unexpected close: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	// One frame per message so every frame is a complete JSON document
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	// The hub closed the channel
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWS handles WebSocket requests from clients
func ServeWS(hub *Hub, conn *websocket.Conn) {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	go client.writePump()

	// Blocks until disconnect
	client.readPump()
}
