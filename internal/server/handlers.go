// Package server exposes the HTTP surface of the relay: the WebSocket
// bridge endpoint and the health check.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler upgrades bridge requests and hands the resulting stream
// to the same session machinery that serves raw TCP connections. The ban
// gate applies here too, before a session handler is started.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	stream := newWSStream(conn)

	ip := hostOnly(conn.RemoteAddr().String())
	if s.bans.IsBanned(ip) {
		log.Printf("Rejected banned address %s on bridge", ip)
		if data, err := EncodeFrame(systemFrame("Your IP is banned.")); err == nil {
			stream.Write(data)
		}
		stream.Close()
		return
	}

	s.StartSession(stream)
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "LAN Chat server is running!")
}
