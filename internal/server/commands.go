// Package server interprets slash commands issued by connected sessions.
package server

import (
	"fmt"
	"strings"

	"github.com/LaxmiPrasanna-6/Lan-Chat-Application/internal/chatlog"
)

const helpText = "Commands: /users, /allrooms, /pm <user> <msg>, /join <room>, /help"

type commandFunc func(d *Dispatcher, sess *Session, args []string)

// Dispatcher executes slash commands against the registry and router.
// Unknown commands and commands with the wrong argument count are silently
// ignored, matching the reference behavior.
type Dispatcher struct {
	registry *Registry
	router   *Router
	recorder chatlog.Recorder
	commands map[string]commandFunc
}

// NewDispatcher returns a dispatcher wired to the given registry, router,
// and log sink.
func NewDispatcher(registry *Registry, router *Router, recorder chatlog.Recorder) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		router:   router,
		recorder: recorder,
	}
	d.commands = map[string]commandFunc{
		"/users":    (*Dispatcher).cmdUsers,
		"/allrooms": (*Dispatcher).cmdAllRooms,
		"/pm":       (*Dispatcher).cmdPrivateMessage,
		"/join":     (*Dispatcher).cmdJoin,
		"/help":     (*Dispatcher).cmdHelp,
	}
	return d
}

// Dispatch runs the command carried in raw on behalf of sess. The first
// whitespace-separated token selects the command, case-sensitively.
func (d *Dispatcher) Dispatch(sess *Session, raw string) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return
	}
	handler, ok := d.commands[parts[0]]
	if !ok {
		return
	}
	handler(d, sess, parts[1:])
}

func (d *Dispatcher) cmdUsers(sess *Session, args []string) {
	room, ok := d.registry.RoomOf(sess.conn)
	if !ok {
		return
	}
	names := d.registry.UsernamesInRoom(room)
	reply := fmt.Sprintf("Users in %s: %s", room, strings.Join(names, ", "))
	d.router.SendDirect(sess, systemFrame(reply))
}

func (d *Dispatcher) cmdAllRooms(sess *Session, args []string) {
	rooms := d.registry.Rooms()
	reply := fmt.Sprintf("Active rooms: %s", strings.Join(rooms, ", "))
	d.router.SendDirect(sess, systemFrame(reply))
}

func (d *Dispatcher) cmdPrivateMessage(sess *Session, args []string) {
	if len(args) < 2 {
		return
	}
	target := args[0]
	text := strings.Join(args[1:], " ")

	if d.router.SendPrivate(sess.username, target, text) {
		d.router.SendDirect(sess, systemFrame(fmt.Sprintf("PM sent to %s", target)))
	} else {
		d.router.SendDirect(sess, systemFrame(fmt.Sprintf("User %s not found", target)))
	}
}

func (d *Dispatcher) cmdJoin(sess *Session, args []string) {
	if len(args) < 1 {
		return
	}
	oldRoom, ok := d.registry.RoomOf(sess.conn)
	if !ok {
		// Connection already tearing down.
		return
	}
	newRoom := args[0]

	d.router.Broadcast(oldRoom, systemFrame(fmt.Sprintf("%s left the room", sess.username)))

	d.registry.SetRoom(sess.conn, newRoom)

	d.router.Broadcast(newRoom, systemFrame(fmt.Sprintf("%s joined the room", sess.username)))
	d.router.SendDirect(sess, systemFrame(fmt.Sprintf("Joined room: %s", newRoom)))

	d.recorder.Record(oldRoom, fmt.Sprintf("[%s] %s left for %s", timestamp(), sess.username, newRoom))
	d.recorder.Record(newRoom, fmt.Sprintf("[%s] %s joined from %s", timestamp(), sess.username, oldRoom))
}

func (d *Dispatcher) cmdHelp(sess *Session, args []string) {
	d.router.SendDirect(sess, systemFrame(helpText))
}
