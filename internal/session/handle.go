package session

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/arin/lmchat/internal/conversation"
)

// State is a position in the stream lifecycle. Completed, Cancelled and
// Failed are terminal and mutually exclusive.
type State int

const (
	Idle State = iota
	Opening
	Streaming
	Completed
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// Stats describes one stream. Chars counts runes.
type Stats struct {
	Start    time.Time
	End      time.Time
	Chunks   int
	Chars    int
	Terminal bool
}

// Elapsed is the stream duration so far, or in total once terminal.
func (s Stats) Elapsed() time.Duration {
	if s.Start.IsZero() {
		return 0
	}
	if s.End.IsZero() {
		return time.Since(s.Start)
	}
	return s.End.Sub(s.Start)
}

// CharsPerSecond is the average throughput over Elapsed.
func (s Stats) CharsPerSecond() float64 {
	secs := s.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Chars) / secs
}

// Handle controls one in-flight stream.
type Handle struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	reply  *conversation.Reply

	mu    sync.Mutex
	state State
	stats Stats
	err   error
}

func newHandle(id string, cancel context.CancelFunc, reply *conversation.Reply, start time.Time) *Handle {
	return &Handle{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		reply:  reply,
		state:  Opening,
		stats:  Stats{Start: start},
	}
}

// ID identifies the stream in logs.
func (h *Handle) ID() string { return h.id }

// Cancel asks the stream to stop. It is safe to call any number of times,
// including after the stream has ended.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed after the final observer call has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the stream ends and returns its terminal state.
func (h *Handle) Wait() State {
	<-h.done
	return h.State()
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Err is the failure reported to OnError, nil in any other state.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Reply returns the assistant text accumulated so far.
func (h *Handle) Reply() string {
	return h.reply.Content()
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// addFragment counts one fragment and returns the new chunk count.
func (h *Handle) addFragment(text string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats.Chunks++
	h.stats.Chars += utf8.RuneCountInString(text)
	return h.stats.Chunks
}

// terminate freezes the stats and records the outcome. Only the first call
// has any effect.
func (h *Handle) terminate(s State, err error, end time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stats.Terminal {
		return
	}
	h.state = s
	h.err = err
	h.stats.End = end
	h.stats.Terminal = true
}
