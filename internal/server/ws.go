// Package server exposes the chat core over a WebSocket endpoint. It owns
// the HTTP listener, the protocol upgrade, and the per-connection read and
// write loops; everything after "a frame arrived" belongs to the hub.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/server/internal/chat/hub"
)

const (
	// writeWait bounds how long a single frame write may block.
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound frames. Chat payloads are small; anything
	// bigger is a misbehaving client.
	maxMessageSize = 64 * 1024

	// outboundBuffer is the per-connection send queue depth. A peer that
	// falls further behind than this starts losing broadcasts instead of
	// stalling everyone else.
	outboundBuffer = 256
)

// ErrConnClosed is returned by Send after the connection has shut down.
var ErrConnClosed = errors.New("server: connection closed")

// ErrSlowConsumer is returned by Send when the outbound queue is full.
var ErrSlowConsumer = errors.New("server: outbound buffer full, message dropped")

// Server accepts WebSocket connections on /ws and hands them to the hub.
type Server struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
	http     *http.Server
}

// New returns a Server listening on addr once ListenAndServe is called.
func New(addr string, h *hub.Hub) *Server {
	s := &Server{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser client is served from anywhere during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes: /ws for the chat protocol and /healthz
// for liveness probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe blocks serving connections until Shutdown or a listener
// error. http.ErrServerClosed is returned on clean shutdown, as with
// net/http.
func (s *Server) ListenAndServe() error {
	log.Printf("websocket server listening on %s", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting new connections and waits for in-flight handlers
// up to the context deadline. Open WebSocket read loops end when their
// underlying connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	conn := newWSConn(ws)
	ctx := r.Context()
	s.hub.OnConnect(ctx, conn)
	defer func() {
		s.hub.OnDisconnect(ctx, conn)
		conn.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read: %v", err)
			}
			return
		}
		s.hub.OnMessage(ctx, conn, data)
	}
}

// wsConn adapts a gorilla connection to chat.Conn. Writes go through a
// buffered channel drained by a single goroutine, so Send never blocks on a
// slow peer and WriteMessage is never called concurrently.
type wsConn struct {
	ws        *websocket.Conn
	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{
		ws:       ws,
		outbound: make(chan []byte, outboundBuffer),
		done:     make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case msg := <-c.outbound:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send queues one text frame for delivery. It fails fast instead of
// blocking: ErrConnClosed once the connection is down, ErrSlowConsumer when
// the peer's queue is full.
func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.outbound <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

// Open reports whether Send can still queue frames.
func (c *wsConn) Open() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close shuts the connection down. Safe to call more than once and from
// multiple goroutines.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}
