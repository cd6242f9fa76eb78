// Package ws pushes quote batches to browser dashboards over websockets.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"stockdash/internal/provider"
)

const (
	writeWait = 5 * time.Second
	// sendQueue is how many batches may wait for a slow client before it
	// is dropped.
	sendQueue = 4
)

// Message is the envelope sent to clients.
type Message struct {
	Type  string          `json:"type"`
	Batch *provider.Batch `json:"batch,omitempty"`
}

// client owns one connection. Only its writer goroutine writes to conn,
// since gorilla allows one concurrent writer.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendQueue), done: make(chan struct{})}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (h *Hub) writer(c *client) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("ws: write error: %v", err)
				h.drop(c)
				return
			}
		}
	}
}

// Hub tracks connected clients and broadcasts each published batch.
// Newly connected clients immediately receive the latest batch.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues b for every connected client and returns without
// waiting for the writes. A client whose queue is full is dropped.
func (h *Hub) Publish(_ context.Context, b provider.Batch) error {
	data, err := json.Marshal(Message{Type: "batch", Batch: &b})
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.Lock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		log.Printf("ws: client too slow, dropping")
		h.drop(c)
	}
	return nil
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	if ok {
		log.Printf("ws: client disconnected, total clients: %d", n)
	}
}

// ServeHTTP upgrades the request and holds the connection until the
// client goes away. Incoming messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}
	c := newClient(conn)
	h.register(c)
	defer h.drop(c)

	go h.writer(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// register adds c and queues the latest batch for it.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("ws: client connected, total clients: %d", n)
}
