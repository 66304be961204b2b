// Package monitoring streams batch-completion events to websocket
// subscribers and keeps a short in-memory history for the stats API.
package monitoring

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"heartguard/predict"
)

// recentLimit bounds the in-memory batch history.
const recentLimit = 32

// BatchEvent describes one completed prediction batch.
type BatchEvent struct {
	Token      string               `json:"token"`
	Rows       int                  `json:"rows"`
	Statistics predict.Distribution `json:"statistics"`
	Timestamp  time.Time            `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans batch events out to connected websocket clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc

	mu     sync.RWMutex
	recent []BatchEvent
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs the fan-out loop until Stop is called.
func (h *Hub) Start() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			log.Printf("Monitor client connected (total: %d)", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}

		case <-h.ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// PublishBatch records a completed batch and broadcasts it.
func (h *Hub) PublishBatch(event BatchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	h.recent = append(h.recent, event)
	if len(h.recent) > recentLimit {
		h.recent = h.recent[len(h.recent)-recentLimit:]
	}
	h.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal batch event: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Printf("Monitor broadcast queue full, dropping event %s", event.Token)
	}
}

// Recent returns up to limit most recent batch events, newest last.
// limit <= 0 returns everything retained.
func (h *Hub) Recent(limit int) []BatchEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.recent) {
		limit = len(h.recent)
	}
	out := make([]BatchEvent, limit)
	copy(out, h.recent[len(h.recent)-limit:])
	return out
}

// HandleWebSocket upgrades the request and attaches the client to the
// hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}
