// Package registry maps live connections to their server-assigned session ids.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"chat-relay/server/internal/chat"
)

// Registry is the sole owner of the connection-to-session-id association.
// All methods are safe for concurrent use; connection handlers and the
// periodic reporter run on separate goroutines.
type Registry struct {
	mu       sync.RWMutex
	sessions map[chat.Conn]string
}

// New returns an empty Registry. One instance lives for the whole process.
func New() *Registry {
	return &Registry{sessions: make(map[chat.Conn]string)}
}

// Register associates a fresh unique session id with the connection and
// returns it. Ids never collide across currently-live sessions.
func (r *Registry) Register(conn chat.Conn) string {
	id := uuid.New().String()
	r.mu.Lock()
	r.sessions[conn] = id
	r.mu.Unlock()
	return id
}

// Lookup returns the session id for the connection, if registered.
func (r *Registry) Lookup(conn chat.Conn) (string, bool) {
	r.mu.RLock()
	id, ok := r.sessions[conn]
	r.mu.RUnlock()
	return id, ok
}

// Unregister removes the connection's association. Idempotent.
func (r *Registry) Unregister(conn chat.Conn) {
	r.mu.Lock()
	delete(r.sessions, conn)
	r.mu.Unlock()
}

// Size returns the number of live sessions.
func (r *Registry) Size() int {
	r.mu.RLock()
	n := len(r.sessions)
	r.mu.RUnlock()
	return n
}

// Snapshot returns the current set of registered connections. Broadcast
// iterates the snapshot so the lock is never held across peer writes.
func (r *Registry) Snapshot() []chat.Conn {
	r.mu.RLock()
	conns := make([]chat.Conn, 0, len(r.sessions))
	for conn := range r.sessions {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()
	return conns
}
