package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/control"
)

const clientBuffer = 64

// Hub fans state changes out to connected dashboards. A client sees the changes of
// its own devices, or all of them when it belongs to an admin.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// Client is one dashboard connection
type Client struct {
	userID uuid.UUID
	admin  bool
	send   chan []byte
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Register adds a client for userID
func (h *Hub) Register(userID uuid.UUID, admin bool) *Client {
	client := &Client{userID: userID, admin: admin, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	log.Debug().Str("user_id", userID.String()).Int("total", total).Msg("Dashboard connected")
	return client
}

// Unregister removes a client and closes its channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send returns the channel of outgoing messages of a client
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Name implements Sink
func (h *Hub) Name() string {
	return "websocket"
}

// Notify implements Sink. Clients too slow to keep up are dropped.
func (h *Hub) Notify(_ context.Context, change *control.StateChange) error {
	data, err := json.Marshal(newMessage(change))
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.admin && client.userID != change.UserID {
			continue
		}
		select {
		case client.send <- data:
		default:
			delete(h.clients, client)
			close(client.send)
			log.Warn().Str("user_id", client.userID.String()).Msg("Dropping slow dashboard")
		}
	}
	return nil
}
