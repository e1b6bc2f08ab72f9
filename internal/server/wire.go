// Package server implements the frame codec for the newline-delimited JSON
// protocol spoken between clients and the chat relay.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Frame type tags carried in the "type" field of every record after the
// hello frame. Records with any other tag are ignored by handlers.
const (
	TypeMsg     = "msg"
	TypeSystem  = "system"
	TypePrivate = "private"
	TypeCommand = "command"
)

// Frame is one newline-delimited record on the wire. Which fields are
// populated depends on Type: chat and private deliveries carry From, Msg,
// and Time; system notices carry Msg and Time; inbound commands carry Cmd.
type Frame struct {
	Type string `json:"type"`
	From string `json:"from,omitempty"`
	Msg  string `json:"msg,omitempty"`
	Cmd  string `json:"cmd,omitempty"`
	Time string `json:"time,omitempty"`
}

// Hello is the mandatory first frame a client sends, establishing its
// username and initial room. It carries no type tag.
type Hello struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// ErrBadHello indicates the first frame could not be parsed or was missing
// a required field. The connection is closed before registration.
var ErrBadHello = errors.New("malformed hello frame")

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func systemFrame(msg string) Frame {
	return Frame{Type: TypeSystem, Msg: msg, Time: timestamp()}
}

func privateFrame(from, msg string) Frame {
	return Frame{Type: TypePrivate, From: from, Msg: msg, Time: timestamp()}
}

// EncodeFrame serializes a frame as a single newline-terminated JSON record.
func EncodeFrame(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ParseHello parses the first line received on a connection. Both fields
// are required; anything else is ErrBadHello.
func ParseHello(line []byte) (Hello, error) {
	var h Hello
	if err := json.Unmarshal(line, &h); err != nil {
		return Hello{}, ErrBadHello
	}
	if h.Username == "" || h.Room == "" {
		return Hello{}, ErrBadHello
	}
	return h, nil
}

func parseFrame(line []byte) (Frame, bool) {
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Frame{}, false
	}
	if f.Type == "" {
		return Frame{}, false
	}
	return f, true
}

// Decoder reassembles newline-delimited records from arbitrarily sized
// chunks of a byte stream. A trailing partial line is carried over to the
// next call. Lines longer than the configured maximum are discarded without
// terminating the stream.
type Decoder struct {
	buf      []byte
	max      int64
	dropping bool
}

// NewDecoder returns a decoder enforcing maxLineSize as the longest
// accepted record. A non-positive limit disables the check.
func NewDecoder(maxLineSize int64) *Decoder {
	return &Decoder{max: maxLineSize}
}

// Split appends chunk to the carryover buffer and returns every complete
// line now available, trimmed of surrounding whitespace. Empty and oversize
// lines are dropped.
func (d *Decoder) Split(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			if d.max > 0 && int64(len(d.buf)) > d.max {
				// Oversize partial line: discard what we have and keep
				// discarding until the terminating newline arrives.
				d.dropping = true
				d.buf = d.buf[:0]
			}
			return lines
		}

		line := bytes.TrimSpace(d.buf[:i])
		d.buf = d.buf[i+1:]

		if d.dropping {
			d.dropping = false
			continue
		}
		if d.max > 0 && int64(len(line)) > d.max {
			continue
		}
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
}

// Feed decodes every complete frame in chunk plus any carryover. Malformed
// lines and lines without a type tag are silently dropped; a bad line never
// aborts the stream.
func (d *Decoder) Feed(chunk []byte) []Frame {
	var frames []Frame
	for _, line := range d.Split(chunk) {
		f, ok := parseFrame(line)
		if !ok {
			continue
		}
		frames = append(frames, f)
	}
	return frames
}
