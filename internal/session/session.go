// Package session drives one streaming chat turn at a time: it opens the
// completion stream, decodes frames into fragments, grows the pending reply
// and reports the outcome to an Observer.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arin/lmchat/internal/ai"
	"github.com/arin/lmchat/internal/conversation"
	"github.com/arin/lmchat/internal/logging"
	"github.com/arin/lmchat/internal/sse"
)

// StoppedMarker is appended to a reply whose stream was cancelled.
const StoppedMarker = "[stopped]"

var (
	// ErrBusy is returned by Send while another stream is active.
	ErrBusy = errors.New("a stream is already in progress")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("session closed")
)

// Params are the per-send sampling settings.
type Params struct {
	Endpoint    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Controller owns at most one active stream for a Conversation.
type Controller struct {
	conv      *conversation.Conversation
	streamer  ai.Streamer
	observer  Observer
	logger    *slog.Logger
	timeout   time.Duration
	supersede bool

	mu     sync.Mutex
	active *Handle
	last   *Handle
	closed bool
}

// Option customises a Controller.
type Option func(*Controller)

// WithObserver sets the observer notified of every stream.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout cancels any stream still running after d. A timed-out stream
// ends Cancelled, exactly as if the caller had cancelled it.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithSupersede makes Send cancel the active stream and wait for it to end
// instead of failing with ErrBusy. Such a Send must not be made from an
// observer callback of the stream it would wait for.
func WithSupersede() Option {
	return func(c *Controller) { c.supersede = true }
}

// New returns a Controller streaming turns of conv through streamer.
func New(conv *conversation.Conversation, streamer ai.Streamer, opts ...Option) *Controller {
	c := &Controller{
		conv:     conv,
		streamer: streamer,
		observer: Funcs{},
		logger:   logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Conversation returns the transcript this controller fills.
func (c *Controller) Conversation() *conversation.Conversation {
	return c.conv
}

// Send appends prompt as a new turn and starts streaming the reply. The
// stream runs until it completes, fails, or ctx or the returned handle is
// cancelled. Observer calls happen on the stream's own goroutine.
func (c *Controller) Send(ctx context.Context, p Params, prompt string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if c.closed {
			return nil, ErrClosed
		}
		prev := c.active
		if prev == nil {
			break
		}
		if !c.supersede {
			return nil, ErrBusy
		}
		c.mu.Unlock()
		prev.Cancel()
		<-prev.Done()
		c.mu.Lock()
	}

	reply, err := c.conv.AppendTurn(prompt)
	if err != nil {
		return nil, err
	}
	req := ai.StreamRequest{
		Endpoint:    p.Endpoint,
		Model:       p.Model,
		Messages:    toWire(c.conv.Prompt()),
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	h := newHandle(uuid.NewString(), cancel, reply, time.Now())
	c.active = h

	go c.run(runCtx, h, req)
	return h, nil
}

// Retry sends the last prompt again as a new turn.
func (c *Controller) Retry(ctx context.Context, p Params) (*Handle, error) {
	last := c.conv.LastPrompt()
	if last == "" {
		return nil, conversation.ErrNoLastPrompt
	}
	return c.Send(ctx, p, last)
}

// Active returns the running stream, or nil.
func (c *Controller) Active() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Last returns the most recently finished stream, or nil.
func (c *Controller) Last() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// State is Idle when no stream is running.
func (c *Controller) State() State {
	if h := c.Active(); h != nil {
		return h.State()
	}
	return Idle
}

// Cancel stops the active stream, if any, without waiting for it.
func (c *Controller) Cancel() {
	if h := c.Active(); h != nil {
		h.Cancel()
	}
}

// Clear stops any active stream, waits for it to end, then wipes the
// transcript. It returns label so callers can show it as the status line.
// It must not be called from an observer callback.
func (c *Controller) Clear(label string) (string, error) {
	if h := c.Active(); h != nil {
		h.Cancel()
		<-h.Done()
	}
	if err := c.conv.Clear(); err != nil {
		return "", err
	}
	return label, nil
}

// Close cancels the active stream, waits for it, and rejects further sends.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	h := c.active
	c.mu.Unlock()
	if h != nil {
		h.Cancel()
		<-h.Done()
	}
}

func (c *Controller) run(ctx context.Context, h *Handle, req ai.StreamRequest) {
	log := c.logger.With("stream", h.ID(), "endpoint", req.Endpoint, "model", req.Model)
	log.Debug("opening stream", "messages", len(req.Messages))

	outcome, err := c.stream(ctx, h, req, log)
	c.finish(h, outcome, err, log)
}

func (c *Controller) stream(ctx context.Context, h *Handle, req ai.StreamRequest, log *slog.Logger) (State, error) {
	body, err := c.streamer.OpenStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Cancelled, nil
		}
		return Failed, err
	}
	defer body.Close()
	if ctx.Err() != nil {
		return Cancelled, nil
	}
	h.setState(Streaming)

	// Unblock a pending read on cancellation even if the transport does not
	// watch the context itself.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	frames := sse.NewReader(body)
	for {
		frame, err := frames.Next()
		if ctx.Err() != nil {
			return Cancelled, nil
		}
		if errors.Is(err, io.EOF) {
			log.Debug("stream ended without sentinel")
			return Completed, nil
		}
		if err != nil {
			return Failed, &ai.StreamError{Err: err}
		}

		for _, payload := range frame.Data {
			if ctx.Err() != nil {
				return Cancelled, nil
			}
			d := ai.ExtractDelta(payload)
			switch d.Kind {
			case ai.DeltaTerminal:
				return Completed, nil
			case ai.DeltaFragment:
				h.reply.Append(d.Text)
				if h.addFragment(d.Text) == 1 {
					log.Debug("first fragment", "ttft_ms", time.Since(h.Stats().Start).Milliseconds())
				}
				c.observer.OnFragment(d.Text)
			case ai.DeltaMalformed:
				log.Debug("skipping malformed frame", "bytes", len(payload))
			}
		}
	}
}

func (c *Controller) finish(h *Handle, outcome State, err error, log *slog.Logger) {
	switch outcome {
	case Cancelled:
		h.reply.Finish(suffix(h.reply.Content(), StoppedMarker))
	case Failed:
		h.reply.Finish(suffix(h.reply.Content(), fmt.Sprintf("[error: %v]", err)))
	default:
		h.reply.Finish("")
	}
	h.terminate(outcome, err, time.Now())
	h.cancel()

	c.mu.Lock()
	if c.active == h {
		c.active = nil
	}
	c.last = h
	c.mu.Unlock()

	st := h.Stats()
	log.Debug("stream finished",
		"state", outcome.String(),
		"chunks", st.Chunks,
		"chars", st.Chars,
		"elapsed_ms", st.Elapsed().Milliseconds(),
		"error", err,
	)

	switch outcome {
	case Completed:
		c.observer.OnDone()
	case Cancelled:
		c.observer.OnCancelled()
	default:
		c.observer.OnError(err)
	}
	close(h.done)
}

// suffix separates a terminal marker from any partial content.
func suffix(content, marker string) string {
	if content == "" {
		return marker
	}
	return "\n\n" + marker
}

func toWire(msgs []conversation.Message) []ai.Message {
	out := make([]ai.Message, len(msgs))
	for i, m := range msgs {
		out[i] = ai.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
