package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"microcredit/internal/adapters/events"
	"microcredit/internal/adapters/http/middleware"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// EventStreamHandler streams committed ledger events over SSE
type EventStreamHandler struct {
	hub *events.Hub
}

// NewEventStreamHandler creates a new event stream handler
func NewEventStreamHandler(hub *events.Hub) *EventStreamHandler {
	return &EventStreamHandler{hub: hub}
}

// Stream sends ledger events as they commit. Borrowers only receive events
// naming their wallet.
// @Summary Live event stream
// @Tags Ledger
// @Produce text/event-stream
// @Security BearerAuth
// @Router /ledger/events/stream [get]
func (h *EventStreamHandler) Stream(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var wallet common.Address
	if role, _ := c.Locals(middleware.LocalRole).(string); role == string(domain.RoleUser) {
		wallet = caller.Address
	}

	clientID := uuid.NewString()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		client := &events.Client{
			ID:      clientID,
			Wallet:  wallet,
			Channel: make(chan domain.EventEnvelope, 50),
		}

		h.hub.Register(client)
		defer h.hub.Unregister(clientID)

		// Send initial connection event
		fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":\"%s\"}\n\n", clientID)
		if err := w.Flush(); err != nil {
			return
		}

		// Heartbeat ticker
		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-client.Channel:
				if !ok {
					return
				}
				if err := writeEvent(w, event); err != nil {
					log.Printf("📡 Event stream client disconnected: %s", clientID)
					return
				}

			case <-heartbeat.C:
				fmt.Fprintf(w, ": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					log.Printf("📡 Event stream client disconnected: %s", clientID)
					return
				}
			}
		}
	})

	return nil
}

// writeEvent writes one SSE frame
func writeEvent(w *bufio.Writer, event domain.EventEnvelope) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Name, data)
	return w.Flush()
}
