package hub

import (
	"encoding/json"
	"sync"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client represents a single client connection (a participant attached to a
// room or game channel). The transport handler drains it until it is closed.
type Client chan []byte

// clientBuffer is the per-client backlog. A client that falls further behind
// than this recovers via snapshot-on-reattach, so dropped events are not an
// error.
const clientBuffer = 32

// Hub manages all active channels and their clients. Channels are keyed by
// strings such as "room:12" and "game:7".
type Hub struct {
	channels map[string]map[Client]bool
	mu       sync.RWMutex
}

// GlobalHub is the singleton instance of our Hub.
var GlobalHub = NewHub()

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[Client]bool),
	}
}

// Subscribe adds a new client to a channel and returns it. Events broadcast
// after Subscribe returns are guaranteed to be queued for the client, so a
// snapshot taken afterwards is never older than the first queued event.
func (h *Hub) Subscribe(channel string) Client {
	client := make(Client, clientBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[Client]bool)
	}
	h.channels[channel][client] = true
	return client
}

// Unsubscribe removes a client from a channel.
func (h *Hub) Unsubscribe(channel string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.channels[channel]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Close the channel to signal the transport handler to stop.
			if len(clients) == 0 {
				delete(h.channels, channel)
			}
		}
	}
}

// Broadcast sends an event to all clients on a channel.
func (h *Hub) Broadcast(channel string, event Event) {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.channels[channel] {
		// Use a non-blocking send so a slow client never blocks the
		// mutation path that produced the event.
		select {
		case client <- messageBytes:
		default:
			// Client buffer is full; it will resync from a snapshot
			// when it reattaches.
		}
	}
}

// Subscribers reports how many clients are attached to a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
