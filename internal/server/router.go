// Package server routes frames to sessions: room broadcast, private
// delivery, and direct replies.
package server

import "log"

// Router delivers frames to sessions selected through the registry. All
// sends are best effort: a failing or slow recipient is logged and skipped,
// never retried, and never blocks delivery to the rest of a room.
type Router struct {
	registry *Registry
}

// NewRouter returns a router delivering through the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Broadcast sends frame to every session currently in room. Membership is
// captured as a snapshot first, so registrations racing with the fan-out
// see a consistent cut and the registry is never held during socket writes.
func (rt *Router) Broadcast(room string, f Frame) {
	for _, sess := range rt.registry.SnapshotRoom(room) {
		if err := sess.send(f); err != nil {
			log.Printf("Error broadcasting to %s (%s): %v", sess.username, sess.remoteAddr, err)
		}
	}
}

// SendPrivate delivers a private frame to the first session registered
// under toUsername. The returned bool means the socket write succeeded,
// nothing more; there is no acknowledgment from the recipient.
func (rt *Router) SendPrivate(fromUsername, toUsername, text string) bool {
	target, ok := rt.registry.FindByUsername(toUsername)
	if !ok {
		return false
	}
	if err := target.send(privateFrame(fromUsername, text)); err != nil {
		log.Printf("Error sending private message to %s: %v", toUsername, err)
		return false
	}
	return true
}

// SendDirect unicasts one frame to exactly one session, used for command
// replies.
func (rt *Router) SendDirect(sess *Session, f Frame) {
	if err := sess.send(f); err != nil {
		log.Printf("Error replying to %s (%s): %v", sess.username, sess.remoteAddr, err)
	}
}
