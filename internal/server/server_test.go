package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LaxmiPrasanna-6/Lan-Chat-Application/internal/chatlog"
)

func startTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()

	if cfg != nil {
		SetConfig(cfg)
	}
	t.Cleanup(func() { SetConfig(nil) })

	srv := NewServer(chatlog.Nop{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go srv.Serve(listener)
	t.Cleanup(func() { srv.Shutdown(2 * time.Second) })

	// Serve publishes the listener before accepting; wait for it.
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)
	return srv
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	rd   *bufio.Reader
}

func dialServer(t *testing.T, srv *Server) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, rd: bufio.NewReader(conn)}
}

func dialChat(t *testing.T, srv *Server, username, room string) *testClient {
	t.Helper()

	c := dialServer(t, srv)
	c.sendRaw(fmt.Sprintf(`{"username":%q,"room":%q}`, username, room))
	return c
}

func (c *testClient) sendRaw(line string) {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(c.t, err)
}

func (c *testClient) sendFrame(f Frame) {
	c.t.Helper()
	data, err := EncodeFrame(f)
	require.NoError(c.t, err)
	_, err = c.conn.Write(data)
	require.NoError(c.t, err)
}

func (c *testClient) chat(msg string) {
	c.sendFrame(Frame{Type: TypeMsg, Msg: msg})
}

func (c *testClient) command(cmd string) {
	c.sendFrame(Frame{Type: TypeCommand, Cmd: cmd})
}

func (c *testClient) next() Frame {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.rd.ReadString('\n')
	require.NoError(c.t, err, "waiting for next frame")

	var f Frame
	require.NoError(c.t, json.Unmarshal([]byte(line), &f))
	return f
}

func (c *testClient) expectSystem(msg string) {
	c.t.Helper()

	f := c.next()
	require.Equal(c.t, TypeSystem, f.Type)
	require.Equal(c.t, msg, f.Msg)
}

func (c *testClient) expectSilence(d time.Duration) {
	c.t.Helper()

	require.Zero(c.t, c.rd.Buffered(), "unexpected buffered data")
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	_, err := c.rd.ReadByte()
	require.Error(c.t, err, "expected no traffic")
	netErr, ok := err.(net.Error)
	require.True(c.t, ok && netErr.Timeout(), "expected read timeout, got %v", err)
}

func (c *testClient) expectClosed() {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c.rd.ReadByte()
	require.ErrorIs(c.t, err, io.EOF)
}

func TestChatDeliveryWithinRoom(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialChat(t, srv, "alice", "lobby")
	alice.expectSystem("alice joined the room")

	bob := dialChat(t, srv, "bob", "lobby")
	bob.expectSystem("bob joined the room")
	alice.expectSystem("bob joined the room")

	alice.chat("hi")

	for _, c := range []*testClient{alice, bob} {
		f := c.next()
		assert.Equal(t, TypeMsg, f.Type)
		assert.Equal(t, "alice", f.From)
		assert.Equal(t, "hi", f.Msg)
		assert.NotEmpty(t, f.Time)
	}
}

func TestRoomSwitchScenario(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialChat(t, srv, "A", "lobby")
	alice.expectSystem("A joined the room")
	bob := dialChat(t, srv, "B", "lobby")
	bob.expectSystem("B joined the room")
	alice.expectSystem("B joined the room")

	alice.chat("hi")
	require.Equal(t, "hi", alice.next().Msg)
	require.Equal(t, "hi", bob.next().Msg)

	bob.command("/join other")
	bob.expectSystem("B left the room")
	bob.expectSystem("B joined the room")
	bob.expectSystem("Joined room: other")
	alice.expectSystem("B left the room")

	carol := dialChat(t, srv, "C", "other")
	carol.expectSystem("C joined the room")
	bob.expectSystem("C joined the room")

	// Lobby traffic no longer reaches B or C.
	alice.chat("still here?")
	require.Equal(t, "still here?", alice.next().Msg)
	bob.expectSilence(200 * time.Millisecond)
	carol.expectSilence(200 * time.Millisecond)

	// Traffic in the new room reaches its members only.
	bob.chat("made it")
	f := carol.next()
	assert.Equal(t, "B", f.From)
	assert.Equal(t, "made it", f.Msg)
	require.Equal(t, "made it", bob.next().Msg)
	alice.expectSilence(200 * time.Millisecond)
}

func TestPrivateMessageEndToEnd(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialChat(t, srv, "alice", "lobby")
	alice.expectSystem("alice joined the room")
	bob := dialChat(t, srv, "bob", "den")
	bob.expectSystem("bob joined the room")

	alice.command("/pm bob hello")

	f := bob.next()
	assert.Equal(t, TypePrivate, f.Type)
	assert.Equal(t, "alice", f.From)
	assert.Equal(t, "hello", f.Msg)
	alice.expectSystem("PM sent to bob")

	alice.command("/pm ghost hello")
	alice.expectSystem("User ghost not found")
	bob.expectSilence(200 * time.Millisecond)
}

func TestUnknownCommandProducesNothing(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialChat(t, srv, "alice", "lobby")
	alice.expectSystem("alice joined the room")

	alice.command("/frobnicate")
	alice.expectSilence(200 * time.Millisecond)

	// The connection is still healthy.
	alice.command("/help")
	alice.expectSystem(helpText)
}

func TestMalformedChatLinesAreDropped(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialChat(t, srv, "alice", "lobby")
	alice.expectSystem("alice joined the room")

	alice.sendRaw("this is not json")
	alice.sendRaw(`{"no":"type"}`)
	alice.sendRaw("")

	alice.chat("survived")
	require.Equal(t, "survived", alice.next().Msg)
}

func TestMalformedHelloClosesConnection(t *testing.T) {
	srv := startTestServer(t, nil)

	c := dialServer(t, srv)
	c.sendRaw("not a hello")
	c.expectClosed()

	assert.Equal(t, 0, srv.Registry().Len())
}

func TestHelloMissingFieldClosesConnection(t *testing.T) {
	srv := startTestServer(t, nil)

	c := dialServer(t, srv)
	c.sendRaw(`{"username":"alice"}`)
	c.expectClosed()

	assert.Equal(t, 0, srv.Registry().Len())
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialChat(t, srv, "alice", "lobby")
	alice.expectSystem("alice joined the room")
	bob := dialChat(t, srv, "bob", "lobby")
	bob.expectSystem("bob joined the room")
	alice.expectSystem("bob joined the room")

	require.NoError(t, alice.conn.Close())

	bob.expectSystem("alice left the room")
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestBanGateRejectsAtAccept(t *testing.T) {
	cfg := NewConfig()
	cfg.BannedIPs = []string{"127.0.0.1"}
	srv := startTestServer(t, cfg)

	c := dialServer(t, srv)

	f := c.next()
	assert.Equal(t, TypeSystem, f.Type)
	assert.Equal(t, "Your IP is banned.", f.Msg)
	c.expectClosed()

	assert.Equal(t, 0, srv.Registry().Len())
}

func TestShutdownClosesSessions(t *testing.T) {
	SetConfig(nil)
	t.Cleanup(func() { SetConfig(nil) })

	srv := NewServer(chatlog.Nop{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(listener)
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)

	alice := dialChat(t, srv, "alice", "lobby")
	alice.expectSystem("alice joined the room")

	require.NoError(t, srv.Shutdown(2*time.Second))
	assert.Equal(t, 0, srv.Registry().Len())

	// The peer observes the close.
	require.NoError(t, alice.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, err := alice.rd.ReadByte(); err != nil {
			break
		}
	}

	// New connections are refused once shut down.
	_, err = net.Dial("tcp", listener.Addr().String())
	assert.Error(t, err)
}
