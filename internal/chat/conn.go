// Package chat provides the connection-facing chat core: the session
// registry, the broadcast hub, and the wire protocol, kept independent of
// the underlying transport.
package chat

// Conn abstracts one bidirectional client connection so the registry and hub
// never touch transport details. Implementations must make Send safe for
// concurrent use and make Open report false once the peer is gone.
type Conn interface {
	// Send writes one text message frame to the peer.
	Send(data []byte) error

	// Open reports whether the connection can still accept writes.
	// Broadcast silently skips connections that are no longer open.
	Open() bool

	// Close closes the connection. Safe to call more than once.
	Close() error
}
