package websocket

import (
	"sync"

	"github.com/openblog/backend/internal/metrics"
)

// Hub maintains the set of active clients and broadcasts post events
// to them. Post events are public, so every connected client receives
// every event.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	metrics *metrics.Metrics

	mu sync.RWMutex
}

// NewHub creates a new Hub instance. The connection gauge tracks every
// client the hub holds, including ones evicted for falling behind.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		metrics:    m,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.IncWSConnections()
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if h.metrics != nil {
					h.metrics.DecWSConnections()
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full, close the connection
					close(client.send)
					delete(h.clients, client)
					if h.metrics != nil {
						h.metrics.DecWSConnections()
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for delivery to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// TotalClients returns the number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
