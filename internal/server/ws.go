// Package server adapts gorilla WebSocket connections to the byte-stream
// interface the session handler runs over, so browser clients speak the
// same newline-delimited protocol as raw TCP clients.
package server

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// wsStream presents a *websocket.Conn as a Conn. Reads drain successive
// messages as one continuous byte stream; writes emit one text message per
// call. A ping loop keeps the connection alive, since unlike the raw TCP
// side gorilla needs deadline handling to detect a dead peer.
type wsStream struct {
	conn   *websocket.Conn
	reader io.Reader

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWSStream(conn *websocket.Conn) *wsStream {
	w := &wsStream{
		conn: conn,
		done: make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go w.pingLoop()

	return w
}

// Read is only called from the session handler goroutine, so reader needs
// no locking.
func (w *wsStream) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				return 0, err
			}
			w.reader = r
		}

		n, err := w.reader.Read(p)
		if err == io.EOF {
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsStream) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return 0, err
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsStream) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
	})
	return w.conn.Close()
}

func (w *wsStream) RemoteAddr() net.Addr {
	return w.conn.RemoteAddr()
}

func (w *wsStream) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.writeMu.Lock()
			w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := w.conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-w.done:
			return
		}
	}
}
