// Package chatlog provides the append-only log sinks the chat relay writes
// room activity and global server events to.
package chatlog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Recorder is the sink the relay appends activity lines to. Record writes
// to a per-room log; RecordGlobal writes to the server-wide log. Both are
// best effort: a failed append is logged, never surfaced to callers.
type Recorder interface {
	Record(room, line string)
	RecordGlobal(line string)
}

// FileRecorder appends lines to <dir>/<room>.txt and <dir>/global.txt.
type FileRecorder struct {
	dir string
	mu  sync.Mutex
}

// NewFileRecorder creates dir if needed and returns a recorder writing
// into it.
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chat log directory: %w", err)
	}
	return &FileRecorder{dir: dir}, nil
}

// Record appends a line to the room's log file.
func (r *FileRecorder) Record(room, line string) {
	r.appendLine(safeName(room)+".txt", line)
}

// RecordGlobal appends a timestamped line to the global log file.
func (r *FileRecorder) RecordGlobal(line string) {
	stamped := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), line)
	r.appendLine("global.txt", stamped)
}

func (r *FileRecorder) appendLine(name, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("Error opening chat log %s: %v", path, err)
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, line); err != nil {
		log.Printf("Error writing chat log %s: %v", path, err)
	}
}

// safeName maps a client-supplied room name to a filesystem-safe file stem.
// Room names arrive over the wire, so anything outside a conservative
// character set becomes an underscore.
func safeName(room string) string {
	if room == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range room {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if strings.Trim(name, ".") == "" {
		return "_"
	}
	return name
}

// Nop is a Recorder that discards everything, for tests and for running
// without a log directory.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(room, line string) {}

// RecordGlobal implements Recorder.
func (Nop) RecordGlobal(line string) {}
