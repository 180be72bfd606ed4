package sse

import (
	"errors"
	"io"
)

const readSize = 4096

// Reader pulls frames from an underlying stream. It only reads more bytes
// once every frame decoded so far has been handed out, so a slow consumer
// holds back the transport.
type Reader struct {
	r     io.Reader
	dec   Decoder
	queue []Frame
	buf   []byte
	err   error
}

// NewReader returns a Reader decoding frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, readSize)}
}

// Next returns the next complete frame. At end of stream it returns io.EOF;
// an unterminated frame left in the buffer at that point is dropped. Any
// other read error is returned once the frames decoded before it are drained.
func (r *Reader) Next() (Frame, error) {
	for len(r.queue) == 0 {
		if r.err != nil {
			return Frame{}, r.err
		}
		n, err := r.r.Read(r.buf)
		if n > 0 {
			r.queue = r.dec.Feed(r.buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.EOF
			}
			r.err = err
			r.dec.Reset()
		}
	}
	f := r.queue[0]
	r.queue = r.queue[1:]
	return f, nil
}

// Buffered reports the size of the pending partial frame.
func (r *Reader) Buffered() int {
	return r.dec.Buffered()
}
