// Package server owns the TCP acceptor and the shared routing machinery
// of the LAN chat relay, with helpers for graceful shutdown.
package server

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/LaxmiPrasanna-6/Lan-Chat-Application/internal/chatlog"
)

// Server accepts chat connections and runs one handler goroutine per
// accepted connection. All handlers share the registry, router, and
// dispatcher; nothing else is shared between them.
type Server struct {
	registry   *Registry
	router     *Router
	dispatcher *Dispatcher
	recorder   chatlog.Recorder
	bans       *BanList

	mu       sync.Mutex
	listener net.Listener
	conns    map[Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a chat server using the active configuration and the
// given log sink.
func NewServer(recorder chatlog.Recorder) *Server {
	cfg := currentConfig()
	registry := NewRegistry()
	router := NewRouter(registry)
	return &Server{
		registry:   registry,
		router:     router,
		dispatcher: NewDispatcher(registry, router, recorder),
		recorder:   recorder,
		bans:       NewBanList(cfg.BannedIPs),
		conns:      make(map[Conn]struct{}),
	}
}

// Registry exposes the session registry for handlers and tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// ListenAndServe listens on the configured chat port and serves until the
// server is shut down.
func (s *Server) ListenAndServe() error {
	cfg := currentConfig()
	listener, err := net.Listen("tcp", cfg.Port)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve runs the accept loop on listener. It returns nil after Shutdown
// closes the listener.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return errors.New("server is shut down")
	}
	s.listener = listener
	s.mu.Unlock()

	log.Printf("Chat server listening on %s", listener.Addr())
	s.recorder.RecordGlobal("Server started")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Failed to accept connection: %v", err)
			continue
		}

		// Ban gate: a banned peer gets one rejection notice and never
		// reaches the session handler.
		ip := hostOnly(conn.RemoteAddr().String())
		if s.bans.IsBanned(ip) {
			log.Printf("Rejected banned address %s", ip)
			if data, err := EncodeFrame(systemFrame("Your IP is banned.")); err == nil {
				conn.Write(data)
			}
			conn.Close()
			continue
		}

		s.StartSession(conn)
	}
}

// Addr returns the listener address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// StartSession launches the handler goroutine for an accepted connection.
// It is shared by the TCP accept loop and the WebSocket bridge.
func (s *Server) StartSession(conn Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(conn)
		s.handleConn(conn)
	}()
}

func (s *Server) forget(conn Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Shutdown stops accepting connections, closes every live connection, and
// waits for the handler goroutines to finish or the timeout to elapse.
// Closing the connections unblocks each handler's pending read, which
// drives its normal teardown path.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down chat server...")

	s.mu.Lock()
	s.closed = true
	listener := s.listener
	conns := make([]Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, conn := range conns {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.recorder.RecordGlobal("Server stopped")
		log.Println("Chat server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Chat server shutdown timeout reached, some handlers may still be running")
		return errors.New("shutdown timed out")
	}
}
