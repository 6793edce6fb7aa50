package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mise/internal/inventory"
	"mise/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChangeMessage is pushed to every feed client after a committed mutation.
type ChangeMessage struct {
	Type      string               `json:"type"`
	Action    models.Action        `json:"action"`
	Entry     *models.HistoryEntry `json:"entry,omitempty"`
	Inventory *models.Snapshot     `json:"inventory"`
	Degraded  bool                 `json:"degraded"`
}

// Feed broadcasts inventory changes to WebSocket clients.
type Feed struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
	closed  bool
	logger  *slog.Logger
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
	feed *Feed
}

// NewFeed returns an empty feed
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{clients: make(map[*feedClient]struct{}), logger: logger}
}

// Publish queues a change for every client. It never blocks: a client whose
// buffer is full is disconnected.
func (f *Feed) Publish(change inventory.Change) {
	data, err := json.Marshal(ChangeMessage{
		Type:      "inventory_changed",
		Action:    change.Action,
		Entry:     change.Entry,
		Inventory: change.Snapshot,
		Degraded:  change.Degraded,
	})
	if err != nil {
		f.logger.Error("feed: marshal change", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			f.logger.Warn("feed: client too slow, dropping", "remote", c.conn.RemoteAddr().String())
			f.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Handle upgrades the request and registers the client
func (f *Feed) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("feed: upgrade failed", "error", err)
		return
	}

	client := &feedClient{conn: conn, send: make(chan []byte, sendBuffer), feed: f}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	f.clients[client] = struct{}{}
	f.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// Close disconnects every client
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for c := range f.clients {
		f.removeLocked(c)
	}
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(c)
}

func (f *Feed) removeLocked(c *feedClient) {
	if _, ok := f.clients[c]; !ok {
		return
	}
	delete(f.clients, c)
	close(c.send)
}

// readPump discards client messages and keeps the read deadline alive.
func (c *feedClient) readPump() {
	defer func() {
		c.feed.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.feed.logger.Debug("feed: read error", "error", err)
			}
			return
		}
	}
}

// writePump pumps queued changes to the connection
func (c *feedClient) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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
