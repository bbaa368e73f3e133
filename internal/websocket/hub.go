// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/chatpresence/internal/logging"
	"github.com/tomtom215/chatpresence/internal/models"
	"github.com/tomtom215/chatpresence/internal/presence"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for the live presence feed
const (
	MessageTypeSnapshot      = "snapshot"
	MessageTypeStatusChanged = "status_changed"
	MessageTypeStatusReset   = "status_reset"
	MessageTypeChannelState  = "channel_state"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StatusChangedData is sent for every store write.
type StatusChangedData struct {
	Version uint64               `json:"version"`
	Source  string               `json:"source"`
	Entries []models.StatusEntry `json:"entries"`
}

// StatusResetData is sent when the store is cleared on logout.
type StatusResetData struct {
	Version uint64 `json:"version"`
}

// ChannelStateData is sent when the presence channel changes state.
type ChannelStateData struct {
	State     string `json:"state"`
	UserID    string `json:"userId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SnapshotData is the first message every client receives.
type SnapshotData struct {
	Version  uint64                                   `json:"version"`
	Statuses map[models.UserID]models.PresenceStatus `json:"statuses"`
	State    string                                   `json:"state"`
	UserID   string                                   `json:"userId,omitempty"`
}

const broadcastBuffer = 256

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// snapshot builds the first message for a client. It runs on the hub
	// goroutine so no broadcast lands between snapshot and registration.
	snapshot func() Message

	// overflowed is set when a broadcast could not be queued. Every client
	// is then closed so it reconnects and starts from a fresh snapshot.
	overflowed atomic.Bool
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until ctx is cancelled, then closes every
// client and returns ctx.Err(). It is designed for suture supervision.
//
// DETERMINISM: Uses priority-based selection:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Broadcast messages
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		if h.overflowed.Swap(false) {
			h.resyncAll()
			continue
		}

		// Priority 2: Handle client lifecycle events (non-blocking)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: Handle broadcast messages or wait for any event
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// SetSnapshot installs the function that builds each client's first
// message.
func (h *Hub) SetSnapshot(fn func() Message) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

func (h *Hub) addClient(client *Client) {
	h.mu.RLock()
	snapshot := h.snapshot
	h.mu.RUnlock()
	if snapshot != nil && !client.Send(snapshot()) {
		logging.Warn().Uint64("client_id", client.id).Msg("websocket client buffer full before snapshot")
	}

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err() is
// not logged as an error because cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// broadcastToClients sends a message to all connected clients in client id
// order. Clients whose buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedClientsLocked()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
}

// resyncAll discards queued broadcasts and closes every client after a
// broadcast was lost. Reconnecting clients get a snapshot that already
// includes the discarded changes.
func (h *Hub) resyncAll() {
	discarded := 0
	for len(h.broadcast) > 0 {
		<-h.broadcast
		discarded++
	}
	closed := h.closeAllClients()
	logging.Warn().
		Int("discarded", discarded).
		Int("clients_closed", closed).
		Msg("broadcast buffer overflowed, closing clients for resync")
}

// closeAllClients closes every client in id order and returns how many
// were closed.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedClientsLocked()
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	return len(clients)
}

func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON sends a JSON message to all connected clients. It never
// blocks. When the broadcast buffer is full the message cannot be queued,
// so the hub closes every client and each one resyncs on reconnect.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	message := Message{
		Type: messageType,
		Data: data,
	}

	select {
	case h.broadcast <- message:
	default:
		if !h.overflowed.Swap(true) {
			logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, clients will resync")
		}
	}
}

// BroadcastStatusChange forwards a store change to all clients.
func (h *Hub) BroadcastStatusChange(change presence.Change) {
	if change.Reset {
		h.BroadcastJSON(MessageTypeStatusReset, StatusResetData{Version: change.Version})
		return
	}
	h.BroadcastJSON(MessageTypeStatusChanged, StatusChangedData{
		Version: change.Version,
		Source:  string(change.Source),
		Entries: change.Entries,
	})
}

// BroadcastChannelState forwards a presence channel state change.
func (h *Hub) BroadcastChannelState(state string, userID models.UserID) {
	h.BroadcastJSON(MessageTypeChannelState, ChannelStateData{
		State:     state,
		UserID:    string(userID),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
