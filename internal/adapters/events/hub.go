package events

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"microcredit/internal/core/domain"
	"microcredit/internal/core/services"

	"github.com/ethereum/go-ethereum/common"
)

// Client is a connected event stream subscriber. A zero Wallet receives
// every event; otherwise only events whose payload names the wallet.
type Client struct {
	ID      string
	Wallet  common.Address
	Channel chan domain.EventEnvelope
}

// Hub fans committed events out to live stream clients
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new event hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a stream client
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("📡 Event stream client registered: %s | total=%d", client.ID, len(h.clients))
}

// Unregister removes a stream client and closes its channel
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Channel)
		delete(h.clients, clientID)
		log.Printf("📡 Event stream client unregistered: %s | total=%d", clientID, len(h.clients))
	}
}

// Publish delivers events to every interested client without blocking.
// Clients whose buffer is full miss the event.
func (h *Hub) Publish(_ context.Context, events []domain.EventEnvelope) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, event := range events {
		for _, client := range h.clients {
			if !client.wants(event) {
				continue
			}
			select {
			case client.Channel <- event:
			default:
				log.Printf("⚠️ Event stream buffer full for client %s, skipping %s", client.ID, event.Name)
			}
		}
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) wants(event domain.EventEnvelope) bool {
	if c.Wallet == (common.Address{}) {
		return true
	}
	return bytes.Contains(event.Payload, []byte(strings.ToLower(c.Wallet.Hex())))
}

// Fanout publishes to several publishers. Every publisher is attempted; the
// failures are joined.
type Fanout []services.EventPublisher

// Publish forwards events to each publisher in order
func (f Fanout) Publish(ctx context.Context, events []domain.EventEnvelope) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
