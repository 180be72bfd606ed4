package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/arin/lmchat/internal/session"
)

// StreamPrinter writes streamed fragments to a terminal as they arrive. It
// implements session.Observer.
type StreamPrinter struct {
	w      io.Writer
	prefix string

	// Spinner, when set, is stopped before the first output.
	Spinner *Spinner

	mu      sync.Mutex
	started bool
	endsNL  bool
}

// NewStreamPrinter returns a printer writing to w. prefix is written before
// the first fragment (e.g. "  " for indentation).
func NewStreamPrinter(w io.Writer, prefix string) *StreamPrinter {
	return &StreamPrinter{w: w, prefix: prefix}
}

func (p *StreamPrinter) begin() {
	if p.started {
		return
	}
	p.started = true
	if p.Spinner != nil {
		p.Spinner.Stop()
	}
	fmt.Fprint(p.w, p.prefix)
}

func (p *StreamPrinter) OnFragment(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.begin()
	fmt.Fprint(p.w, text)
	p.endsNL = strings.HasSuffix(text, "\n")
}

func (p *StreamPrinter) OnDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.end()
}

func (p *StreamPrinter) OnCancelled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marker(color.New(color.FgYellow), session.StoppedMarker)
}

func (p *StreamPrinter) OnError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marker(color.New(color.FgRed), fmt.Sprintf("[error: %v]", err))
}

// marker mirrors the suffix the session appends to the stored reply.
func (p *StreamPrinter) marker(c *color.Color, text string) {
	hadText := p.started
	p.begin()
	if hadText {
		fmt.Fprint(p.w, "\n\n")
	}
	c.Fprint(p.w, text)
	p.endsNL = false
	p.end()
}

func (p *StreamPrinter) end() {
	if p.started && !p.endsNL {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintln(p.w)
}

// Reset prepares the printer for another stream.
func (p *StreamPrinter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	p.endsNL = false
}

// FormatStats renders a one-line summary of a finished stream.
func FormatStats(st session.Stats) string {
	return fmt.Sprintf("%d chunks · %d chars · %.1fs · %.0f chars/s",
		st.Chunks, st.Chars, st.Elapsed().Seconds(), st.CharsPerSecond())
}
