// Package server tracks per-connection session state for the chat relay.
package server

import (
	"io"
	"net"
	"sync"
)

// Conn is the duplex byte stream a session runs over. Satisfied by net.Conn
// and by the WebSocket stream adapter.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

// Session is the server-side state for one connected client. The connection
// handle is exclusively owned by the session's handler goroutine; username
// and remote address are immutable after registration. The room field is
// guarded by the registry lock and must only be touched through Registry
// methods.
type Session struct {
	conn       Conn
	username   string
	remoteAddr string

	writeMu sync.Mutex
	room    string
}

// Username returns the name the client registered with. Names are not
// deduplicated; two sessions may share one.
func (s *Session) Username() string {
	return s.username
}

// RemoteAddr returns the peer's address as reported at accept time.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// send encodes and writes one frame to the session's connection. Writes are
// serialized per session, so frames sent by a single sender arrive in order.
func (s *Session) send(f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.conn.Write(data)
	return err
}
