package conversation

import "encoding/json"

// Snapshot is the persisted form of a transcript. Its JSON shape is
// {"conversation": [...], "lastPrompt": "..."}.
type Snapshot struct {
	Conversation []Message `json:"conversation"`
	LastPrompt   string    `json:"lastPrompt"`
}

// systemBlob is the persisted form of a system prompt: {"system": "..."}.
type systemBlob struct {
	System string `json:"system"`
}

// Snapshot captures the transcript and last prompt. A reply that is still
// streaming is captured with whatever content it has so far.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Conversation: append([]Message{}, c.messages...),
		LastPrompt:   c.lastPrompt,
	}
}

// Restore replaces the transcript and last prompt with s. Messages with an
// unknown role are dropped. It fails with ErrTurnPending while a reply is
// streaming.
func (c *Conversation) Restore(s Snapshot) error {
	msgs := make([]Message, 0, len(s.Conversation))
	for _, m := range s.Conversation {
		if m.Role.Valid() {
			msgs = append(msgs, m)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return ErrTurnPending
	}
	c.messages = msgs
	c.lastPrompt = s.LastPrompt
	return nil
}

// Encode returns the JSON form of s.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a persisted blob. A missing or malformed blob yields
// an empty snapshot rather than an error.
func DecodeSnapshot(data []byte) Snapshot {
	var s Snapshot
	if len(data) == 0 {
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}
	}
	return s
}

// EncodeSystem returns the persisted form of a system prompt.
func EncodeSystem(system string) ([]byte, error) {
	return json.Marshal(systemBlob{System: system})
}

// DecodeSystem parses a persisted system prompt, falling back to "".
func DecodeSystem(data []byte) string {
	var b systemBlob
	if len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return ""
	}
	return b.System
}
