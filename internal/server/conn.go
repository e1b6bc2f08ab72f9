// Package server drives the per-connection session lifecycle: hello frame,
// registration, receive loop, and guaranteed cleanup.
package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
)

// isExpectedCloseError checks if an error is the routine result of one side
// closing the connection, which should not be logged as a failure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}

// handleConn runs one connection from hello to teardown. It blocks until
// the peer disconnects, a read fails, or the server shuts the connection
// down, and guarantees deregistration on every exit path.
func (s *Server) handleConn(conn Conn) {
	remote := conn.RemoteAddr().String()
	cfg := currentConfig()
	dec := NewDecoder(cfg.MaxMessageSize)
	limiter := newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)
	buf := make([]byte, 1024)

	// Connecting: wait for exactly one hello frame. Anything unparseable
	// closes the connection before a session exists, so no cleanup
	// broadcast is needed.
	var sess *Session
	var pending []Frame
	for sess == nil {
		n, err := conn.Read(buf)
		if err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Read error from %s before hello: %v", remote, err)
			}
			conn.Close()
			return
		}

		lines := dec.Split(buf[:n])
		if len(lines) == 0 {
			continue
		}

		hello, err := ParseHello(lines[0])
		if err != nil {
			log.Printf("Rejecting %s: %v", remote, err)
			conn.Close()
			return
		}

		sess, err = s.registry.Register(conn, hello.Username, hello.Room)
		if err != nil {
			log.Printf("Registering %s: %v", remote, err)
			conn.Close()
			return
		}

		// The hello chunk may already carry chat frames behind it.
		for _, line := range lines[1:] {
			if f, ok := parseFrame(line); ok {
				pending = append(pending, f)
			}
		}
	}

	defer s.teardown(sess)

	room := sess.room
	log.Printf("Session registered: %s from %s in %s", sess.username, remote, room)
	s.recorder.Record(room, fmt.Sprintf("[%s] %s joined %s", timestamp(), sess.username, room))
	s.recorder.RecordGlobal(fmt.Sprintf("%s (%s) joined %s", sess.username, hostOnly(remote), room))
	s.router.Broadcast(room, systemFrame(fmt.Sprintf("%s joined the room", sess.username)))

	for _, f := range pending {
		s.handleFrame(sess, f, limiter)
	}

	// Active: block on the stream, decode, dispatch. Transport errors are
	// fatal to this connection only.
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Read error from %s (%s): %v", sess.username, remote, err)
			}
			return
		}
		for _, f := range dec.Feed(buf[:n]) {
			s.handleFrame(sess, f, limiter)
		}
	}
}

// handleFrame dispatches one decoded inbound frame. Chat frames are rate
// limited and broadcast to the sender's current room; command frames go to
// the dispatcher; anything else is ignored.
func (s *Server) handleFrame(sess *Session, f Frame, limiter *rateLimiter) {
	switch f.Type {
	case TypeMsg:
		if limiter != nil && !limiter.allow() {
			log.Printf("Rate limit exceeded for %s (%s); discarding message", sess.username, sess.remoteAddr)
			return
		}
		room, ok := s.registry.RoomOf(sess.conn)
		if !ok {
			return
		}
		out := Frame{Type: TypeMsg, From: sess.username, Msg: f.Msg, Time: timestamp()}
		s.router.Broadcast(room, out)
		s.recorder.Record(room, fmt.Sprintf("[%s] %s: %s", out.Time, sess.username, f.Msg))

	case TypeCommand:
		s.dispatcher.Dispatch(sess, f.Cmd)
	}
}

// teardown deregisters the session, tells its current room it left, and
// releases the connection. Safe to run exactly once per session; it is the
// single exit path for Registered and Active states.
func (s *Server) teardown(sess *Session) {
	prior, ok := s.registry.Unregister(sess.conn)
	if ok {
		// After Unregister no other goroutine touches the session, so
		// reading room without the registry lock is safe.
		room := prior.room
		s.router.Broadcast(room, systemFrame(fmt.Sprintf("%s left the room", prior.username)))
		s.recorder.Record(room, fmt.Sprintf("[%s] %s left %s", timestamp(), prior.username, room))
		s.recorder.RecordGlobal(fmt.Sprintf("%s disconnected", prior.username))
		log.Printf("Session closed: %s from %s", prior.username, prior.remoteAddr)
	}
	sess.conn.Close()
}
