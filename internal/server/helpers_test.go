package server

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeConn captures everything written to it so tests can decode the frames
// a session was sent. Reads report EOF immediately.
type fakeConn struct {
	addr string

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	return 0, io.EOF
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	return c.buf.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return fakeAddr(c.addr)
}

// receivedFrames decodes every frame written to the connection so far.
func (c *fakeConn) receivedFrames(t *testing.T) []Frame {
	t.Helper()

	c.mu.Lock()
	data := append([]byte(nil), c.buf.Bytes()...)
	c.mu.Unlock()

	return NewDecoder(0).Feed(data)
}

// lastFrame returns the most recent frame sent to the connection.
func (c *fakeConn) lastFrame(t *testing.T) Frame {
	t.Helper()

	frames := c.receivedFrames(t)
	if len(frames) == 0 {
		t.Fatalf("no frames received on %s", c.addr)
	}
	return frames[len(frames)-1]
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf.Reset()
}
