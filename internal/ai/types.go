// Package ai provides types for the OpenAI-compatible chat completions API.
package ai

// Roles understood by chat completion servers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message as sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamRequest describes one streaming completion. It is built fresh for
// every send and never modified afterwards.
type StreamRequest struct {
	Endpoint    string
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// chatRequest is the request body for /v1/chat/completions.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

// Model is one entry of the /v1/models listing.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// modelsResponse is the response body from /v1/models.
type modelsResponse struct {
	Data []Model `json:"data"`
}
