// Package sse turns a server-sent-event byte stream into discrete frames.
// A frame is the text between two blank-line boundaries; only its data:
// lines carry a payload; event:, id: and comment lines are dropped.
package sse

import (
	"bytes"
	"strings"
)

var (
	frameSep = []byte("\n\n")
	crlf     = []byte("\r\n")
	lf       = []byte("\n")
)

const dataField = "data:"

// Frame is one complete event. Data holds the payload of every data: line
// in order, with the marker and surrounding whitespace removed.
type Frame struct {
	Data []string
}

// Decoder accumulates raw chunks and emits complete frames. Chunk boundaries
// are arbitrary: a frame may span several chunks and one chunk may carry
// several frames. The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends chunk to the carry-over buffer and returns every frame that is
// now complete, in arrival order. The trailing incomplete segment stays
// buffered until a later chunk terminates it.
func (d *Decoder) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)
	// A CR at the very end may pair with an LF from the next chunk, so only
	// complete CRLF pairs are rewritten.
	if bytes.Contains(d.buf, crlf) {
		d.buf = bytes.ReplaceAll(d.buf, crlf, lf)
	}

	var frames []Frame
	for {
		i := bytes.Index(d.buf, frameSep)
		if i < 0 {
			break
		}
		frames = append(frames, parseFrame(d.buf[:i]))
		d.buf = d.buf[i+len(frameSep):]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Buffered reports how many bytes of an unterminated frame are held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any partial frame.
func (d *Decoder) Reset() {
	d.buf = nil
}

func parseFrame(raw []byte) Frame {
	var f Frame
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, dataField) {
			continue
		}
		f.Data = append(f.Data, strings.TrimSpace(line[len(dataField):]))
	}
	return f
}
