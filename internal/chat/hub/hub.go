// Package hub wires connections, the session registry, the auth protocol,
// and best-effort fan-out together. The transport layer owns the read loop
// and hands each connection event to the Hub.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chat-relay/server/internal/auth/service"
	"chat-relay/server/internal/chat"
	"chat-relay/server/internal/chat/protocol"
	"chat-relay/server/internal/chat/registry"
	"chat-relay/server/internal/telemetry"
)

// Auth is the slice of the auth service the dispatcher needs.
type Auth interface {
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
}

// Hub dispatches inbound messages, relays chat to every open connection, and
// reports the connected-client count on a fixed period. Safe for concurrent
// use: connection handlers run on their own goroutines.
type Hub struct {
	registry *registry.Registry
	auth     Auth
	emitter  telemetry.EventEmitter
}

// New returns a Hub over the given registry and auth service. emitter may be
// nil; telemetry is best-effort.
func New(reg *registry.Registry, auth Auth, emitter telemetry.EventEmitter) *Hub {
	return &Hub{registry: reg, auth: auth, emitter: emitter}
}

// OnConnect registers the connection, assigns it a session id, and sends the
// assign_id message so the peer can correlate itself with broadcasts.
func (h *Hub) OnConnect(ctx context.Context, conn chat.Conn) string {
	id := h.registry.Register(conn)
	log.Printf("new connection assigned id: %s", id)
	if err := conn.Send(protocol.AssignID(id)); err != nil {
		log.Printf("session %s: send assign_id: %v", id, err)
	}
	telemetry.EmitAsync(h.emitter, ctx, &telemetry.Event{Type: telemetry.EventConnect, SessionID: id})
	return id
}

// OnDisconnect removes the connection from the registry. The transport calls
// it exactly once per connection, for clean closes and errors alike.
func (h *Hub) OnDisconnect(ctx context.Context, conn chat.Conn) {
	id, ok := h.registry.Lookup(conn)
	if !ok {
		return
	}
	h.registry.Unregister(conn)
	log.Printf("connection (id = %s) closed", id)
	telemetry.EmitAsync(h.emitter, ctx, &telemetry.Event{Type: telemetry.EventDisconnect, SessionID: id})
}

// OnMessage decodes and dispatches one inbound payload. Malformed payloads
// are logged and dropped; the connection stays open. Auth outcomes are
// replied privately; everything else is broadcast with the sender's id.
// No error ever escapes to the read loop: a bad message must not cost the
// peer its connection.
func (h *Hub) OnMessage(ctx context.Context, conn chat.Conn, data []byte) {
	sessionID, _ := h.registry.Lookup(conn)

	in, err := protocol.Decode(data)
	if err != nil {
		log.Printf("session %s: dropping malformed message: %v", sessionID, err)
		return
	}

	switch in.Kind {
	case protocol.KindLogin:
		h.handleLogin(ctx, conn, sessionID, in.Login)
	case protocol.KindRefresh:
		h.handleRefresh(ctx, conn, sessionID, in.Refresh)
	case protocol.KindChat:
		// Relayed regardless of authentication; any connected peer may chat.
		h.Broadcast(fmt.Sprintf("Client %s: %s", sessionID, in.Raw))
	}
}

func (h *Hub) handleLogin(ctx context.Context, conn chat.Conn, sessionID string, login *protocol.Login) {
	res, err := h.auth.Login(ctx, login.Username, login.Password)
	if err != nil {
		// Upstream failures (store unreachable, signer error) fail closed as a
		// plain login_failure; only the log distinguishes them.
		if !errors.Is(err, service.ErrInvalidCredentials) {
			log.Printf("session %s: login failed upstream: %v", sessionID, err)
		}
		h.reply(conn, sessionID, protocol.LoginFailure())
		telemetry.EmitAsync(h.emitter, ctx, &telemetry.Event{Type: telemetry.EventLoginFailure, SessionID: sessionID})
		return
	}
	h.reply(conn, sessionID, protocol.LoginSuccess(res.AccessToken, res.RefreshToken))
	telemetry.EmitAsync(h.emitter, ctx, &telemetry.Event{
		Type:      telemetry.EventLoginSuccess,
		SessionID: sessionID,
		UserID:    res.UserID,
		Username:  res.Username,
	})
}

func (h *Hub) handleRefresh(ctx context.Context, conn chat.Conn, sessionID string, refresh *protocol.Refresh) {
	res, err := h.auth.Refresh(ctx, refresh.RefreshToken)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidRefreshToken) {
			log.Printf("session %s: refresh failed upstream: %v", sessionID, err)
		}
		h.reply(conn, sessionID, protocol.RefreshFailure())
		telemetry.EmitAsync(h.emitter, ctx, &telemetry.Event{Type: telemetry.EventRefreshFailure, SessionID: sessionID})
		return
	}
	h.reply(conn, sessionID, protocol.RefreshSuccess(res.AccessToken))
	telemetry.EmitAsync(h.emitter, ctx, &telemetry.Event{
		Type:      telemetry.EventRefreshSuccess,
		SessionID: sessionID,
		UserID:    res.UserID,
		Username:  res.Username,
	})
}

func (h *Hub) reply(conn chat.Conn, sessionID string, data []byte) {
	if err := conn.Send(data); err != nil {
		log.Printf("session %s: send reply: %v", sessionID, err)
	}
}

// Broadcast writes the message to every currently-open connection. Delivery
// is best-effort and unordered: closed connections are skipped, and a failed
// send to one peer never prevents delivery to the rest. Send implementations
// are non-blocking, so a slow peer only loses its own messages.
func (h *Hub) Broadcast(message string) {
	data := []byte(message)
	for _, conn := range h.registry.Snapshot() {
		if !conn.Open() {
			continue
		}
		if err := conn.Send(data); err != nil {
			if id, ok := h.registry.Lookup(conn); ok {
				log.Printf("session %s: broadcast send: %v", id, err)
			}
		}
	}
}

// RunReporter logs and broadcasts the connected-client count every interval
// until ctx is done. It runs for the lifetime of the process, independent of
// any single connection.
func (h *Hub) RunReporter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := h.registry.Size()
			log.Printf("Number of connected clients: %d", n)
			h.Broadcast(fmt.Sprintf("Number of connected clients: %d", n))
		}
	}
}
