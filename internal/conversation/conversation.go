// Package conversation holds the chat transcript for one server: the ordered
// messages, the reply currently being streamed, the last prompt (for retry)
// and the system prompt.
package conversation

import (
	"errors"
	"strings"
	"sync"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Message is one transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var (
	// ErrTurnPending is returned when a reply is still streaming.
	ErrTurnPending = errors.New("a reply is still in progress")
	// ErrEmptyPrompt is returned for a prompt that is blank after trimming.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrNoLastPrompt is returned by retry when nothing was sent yet.
	ErrNoLastPrompt = errors.New("no previous prompt to retry")
)

// Conversation is safe for concurrent use. The streaming goroutine appends
// to the pending reply while the caller reads snapshots for rendering.
type Conversation struct {
	mu         sync.Mutex
	messages   []Message
	lastPrompt string
	system     string
	pending    *Reply
}

// New returns an empty conversation.
func New() *Conversation {
	return &Conversation{}
}

// AppendTurn pushes the user message and an empty assistant message in one
// step, records the prompt for retry and returns the reply to fill. It fails
// with ErrTurnPending while an earlier reply is unfinished.
func (c *Conversation) AppendTurn(userText string) (*Reply, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, ErrEmptyPrompt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return nil, ErrTurnPending
	}
	c.messages = append(c.messages,
		Message{Role: RoleUser, Content: text},
		Message{Role: RoleAssistant},
	)
	c.lastPrompt = text
	c.pending = &Reply{conv: c, index: len(c.messages) - 1}
	return c.pending, nil
}

// Messages returns a copy of the transcript, including the pending reply as
// it currently stands.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Prompt returns the context to send upstream: the system prompt, if any,
// followed by every message except the pending reply.
func (c *Conversation) Prompt() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.messages
	if c.pending != nil {
		msgs = msgs[:c.pending.index]
	}
	out := make([]Message, 0, len(msgs)+1)
	if c.system != "" {
		out = append(out, Message{Role: RoleSystem, Content: c.system})
	}
	return append(out, msgs...)
}

// LastPrompt returns the most recently submitted user text.
func (c *Conversation) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPrompt
}

// Pending reports whether a reply is still being streamed.
func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// SystemPrompt returns the system prompt.
func (c *Conversation) SystemPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.system
}

// SetSystemPrompt replaces the system prompt. An empty string removes it.
func (c *Conversation) SetSystemPrompt(s string) {
	c.mu.Lock()
	c.system = strings.TrimSpace(s)
	c.mu.Unlock()
}

// Clear wipes the transcript and the last prompt. The system prompt is kept.
// It fails with ErrTurnPending while a reply is streaming.
func (c *Conversation) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return ErrTurnPending
	}
	c.messages = nil
	c.lastPrompt = ""
	return nil
}

// Reply is the assistant message bound to an in-flight stream. Its content
// only grows until Finish is called. The reply keeps its own copy of the
// text, so it stays readable after the transcript is cleared or restored.
type Reply struct {
	conv  *Conversation
	index int
	text  string
	done  bool
}

// Append adds a fragment to the reply. Calls after Finish are ignored.
func (r *Reply) Append(fragment string) {
	c := r.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.done {
		return
	}
	r.text += fragment
	c.messages[r.index].Content = r.text
}

// Content returns the reply text so far.
func (r *Reply) Content() string {
	c := r.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.text
}

// Finish appends suffix (which may be empty) and releases the pending slot so
// the next turn can start. Only the first call has any effect.
func (r *Reply) Finish(suffix string) {
	c := r.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.text += suffix
	c.messages[r.index].Content = r.text
	if c.pending == r {
		c.pending = nil
	}
}
