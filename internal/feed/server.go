// Package feed streams simulation events to websocket subscribers
// (tooling, the replication layer). Broadcast-only: subscribers never
// talk back, and a slow subscriber is dropped rather than ever blocking
// the simulation tick.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvoronin/dinogo/internal/sim"
)

const (
	writeTimeout = 5 * time.Second
	// clientBuffer is the per-subscriber event backlog before drop.
	clientBuffer = 256
)

// Server fans simulation events out to websocket subscribers.
// Implements sim.Notifier.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// NewServer creates a feed server.
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish implements sim.Notifier. Never blocks: subscribers whose
// buffers are full are disconnected.
func (s *Server) Publish(evt sim.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("feed: marshaling event", "type", evt.Type, "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.out <- data:
		default:
			// Backlogged subscriber; cut it loose.
			delete(s.clients, c)
			close(c.out)
		}
	}
}

// Handler upgrades HTTP requests into feed subscriptions.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		c := &client{conn: conn, out: make(chan []byte, clientBuffer)}

		s.mu.Lock()
		s.clients[c] = struct{}{}
		total := len(s.clients)
		s.mu.Unlock()
		slog.Info("feed subscriber connected", "remote", conn.RemoteAddr(), "total", total)

		go s.writeLoop(c)

		// Reader loop exists only to detect disconnects; inbound
		// frames are discarded.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		s.drop(c)
	}
}

// writeLoop drains the client's buffer onto the wire.
func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.out {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.drop(c)
			return
		}
	}
}

// drop removes a client and closes its buffer once.
func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.out)
	}
}

// SubscriberCount returns the number of connected subscribers.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ListenAndServe runs the feed HTTP listener until the context is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/events", s.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("event feed listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("feed listener: %w", err)
		}
		return nil
	}
}
