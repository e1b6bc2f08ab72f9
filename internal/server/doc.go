// Package server implements the session and message-routing engine of the
// LAN chat relay.
//
// The implementation is organized into specialized files for the wire
// codec, session registry, router, command dispatcher, connection handling,
// and the WebSocket bridge to keep the codebase maintainable and testable
// as the project grows.
package server
