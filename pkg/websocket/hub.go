package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/taxipark/station-dispatch/internal/notify"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

// ErrNoClient is returned when the recipient has no live connection.
// Callers treat it as a transient delivery failure, not a fault.
var ErrNoClient = errors.New("no connected client for recipient")

// Hub maintains active client connections and delivers outward messages.
// It implements notify.Notifier: Send assigns a message id the caller can
// later Edit in place, matching the edit-in-place UX of a chat transport.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	nextMsgID  atomic.Int64
	logger     *logger.Logger
}

// Message is the wire format pushed to connected clients.
type Message struct {
	Type      string      `json:"type"`
	MessageID int64       `json:"message_id,omitempty"`
	Text      string      `json:"text,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Client registered",
				logger.Int64("user_id", client.UserID),
				logger.String("user_type", client.UserType),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
		}
	}
}

// Register registers a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Send delivers a text message to every connection of the recipient and
// returns a handle for later edits. Delivery is best effort.
func (h *Hub) Send(ctx context.Context, recipientID int64, text string) (notify.Handle, error) {
	id := h.nextMsgID.Add(1)
	handle := notify.Handle{RecipientID: recipientID, MessageID: id}
	err := h.push(recipientID, Message{Type: "message", MessageID: id, Text: text})
	return handle, err
}

// Edit replaces the text of a previously sent message in place.
func (h *Hub) Edit(ctx context.Context, handle notify.Handle, text string) error {
	return h.push(handle.RecipientID, Message{Type: "edit", MessageID: handle.MessageID, Text: text})
}

// Broadcast sends a message to every client of the given user type.
func (h *Hub) Broadcast(userType string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", logger.Err(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.UserType == userType {
			select {
			case client.Send <- data:
			default:
				h.logger.Warn("Client send buffer full",
					logger.Int64("user_id", client.UserID),
				)
			}
		}
	}
}

func (h *Hub) push(recipientID int64, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := false
	for client := range h.clients {
		if client.UserID == recipientID {
			select {
			case client.Send <- data:
				sent = true
			default:
				h.logger.Warn("Client send buffer full",
					logger.Int64("user_id", recipientID),
				)
			}
		}
	}

	if !sent {
		return ErrNoClient
	}
	return nil
}

// ActiveConnections returns the number of live connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
