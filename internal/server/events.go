package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/lazypower/lethe/internal/engine"
)

// Hub fans engine events out to websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Broadcast queues ev for every client. Clients whose queue is full are
// dropped rather than stalling the engine.
func (h *Hub) Broadcast(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: marshal %s: %v", ev.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("events: client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stop disconnects every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("events: client connected (total: %d)", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Registered before the handshake so no event emitted after the client
	// sees the upgrade is missed.
	c := &client{send: make(chan []byte, 64)}
	h.register(c)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("events: websocket upgrade failed: %v", err)
		h.unregister(c)
		return
	}
	c.conn = conn

	ctx := conn.CloseRead(context.Background())
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.unregister(c)
				return
			}
		case <-ctx.Done():
			h.unregister(c)
			return
		}
	}
}
