// Package ui provides terminal output helpers: the waiting spinner, the
// streaming printer and the transcript renderer.
package ui

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Spinner shows a waiting state on stderr. When stderr is not a terminal it
// draws nothing, but Success and Fail still print their line.
type Spinner struct {
	s *spinner.Spinner
	w io.Writer

	mu      sync.Mutex
	stopped bool
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(msg string) *Spinner {
	sp := &Spinner{w: os.Stderr}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return sp
	}
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = "  " + msg
	s.Color("cyan")
	sp.s = s
	return sp
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	if sp.s != nil {
		sp.s.Start()
	}
}

// Stop halts the spinner and clears the line. It may be called from any
// goroutine and more than once.
func (sp *Spinner) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.stopped {
		return
	}
	sp.stopped = true
	if sp.s != nil {
		sp.s.Stop()
	}
}

// Success stops the spinner and prints a green check.
func (sp *Spinner) Success(msg string) {
	sp.Stop()
	color.New(color.FgGreen).Fprintf(sp.w, "  ✓ %s\n", msg)
}

// Fail stops the spinner and prints a red cross.
func (sp *Spinner) Fail(msg string) {
	sp.Stop()
	color.New(color.FgRed).Fprintf(sp.w, "  ✗ %s\n", msg)
}
