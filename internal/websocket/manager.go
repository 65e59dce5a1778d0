// Package websocket tracks connected reload clients and pushes the reload
// signal to them over WebSocket connections.
package websocket

import (
	"context"
	"sync"

	"github.com/conneroisu/autoreload/internal/logging"
)

// Registry holds the currently connected clients. It is safe for
// concurrent use; a client may unregister while a broadcast is running.
type Registry struct {
	clients      map[Client]struct{}
	clientsMutex sync.RWMutex
	logger       logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		clients: make(map[Client]struct{}),
		logger:  logger.WithComponent("websocket"),
	}
}

// Register adds client to the registry.
func (r *Registry) Register(client Client) {
	if client == nil {
		return
	}
	r.clientsMutex.Lock()
	r.clients[client] = struct{}{}
	total := len(r.clients)
	r.clientsMutex.Unlock()

	r.logger.Debug(context.Background(), "client connected", "total", total)
}

// Unregister removes client. Removing a client that is not registered is a
// no-op; the return value reports whether anything was removed.
func (r *Registry) Unregister(client Client) bool {
	r.clientsMutex.Lock()
	_, ok := r.clients[client]
	if ok {
		delete(r.clients, client)
	}
	total := len(r.clients)
	r.clientsMutex.Unlock()

	if ok {
		r.logger.Debug(context.Background(), "client disconnected", "total", total)
	}
	return ok
}

// Contains reports whether client is currently registered.
func (r *Registry) Contains(client Client) bool {
	r.clientsMutex.RLock()
	defer r.clientsMutex.RUnlock()
	_, ok := r.clients[client]
	return ok
}

// Count returns the number of connected clients.
func (r *Registry) Count() int {
	r.clientsMutex.RLock()
	defer r.clientsMutex.RUnlock()
	return len(r.clients)
}

// Broadcast delivers message to every registered client. It works on a
// snapshot of the membership, skips clients that unregistered while it ran
// and drops clients whose delivery fails. Failures are logged, never
// returned. It reports how many clients accepted the message.
func (r *Registry) Broadcast(message []byte) int {
	r.clientsMutex.RLock()
	clients := make([]Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	r.clientsMutex.RUnlock()

	delivered := 0
	for _, client := range clients {
		if !r.Contains(client) {
			continue
		}
		if err := client.Send(message); err != nil {
			r.logger.Warn(context.Background(), err, "dropping client after failed delivery")
			if r.Unregister(client) {
				client.Close("delivery failed")
			}
			continue
		}
		delivered++
	}

	r.logger.Debug(context.Background(), "broadcast sent", "message", string(message), "delivered", delivered, "clients", len(clients))
	return delivered
}

// Reload sends the reload signal to every client.
func (r *Registry) Reload() {
	r.logger.Debug(context.Background(), "sending reload message")
	r.Broadcast(ReloadMessage)
}

// CloseAll disconnects every client, used on shutdown.
func (r *Registry) CloseAll(reason string) {
	r.clientsMutex.Lock()
	clients := r.clients
	r.clients = make(map[Client]struct{})
	r.clientsMutex.Unlock()

	for client := range clients {
		client.Close(reason)
	}
}
