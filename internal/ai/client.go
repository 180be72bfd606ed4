// Package ai handles communication with OpenAI-compatible local inference
// servers: model discovery and streaming chat completions.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	modelsPath      = "/v1/models"
	completionsPath = "/v1/chat/completions"
	modelsTimeout   = 15 * time.Second
	maxErrorBody    = 4096
)

// ErrInvalidURL is returned for an empty or unparsable server URL.
var ErrInvalidURL = errors.New("invalid server URL")

// Client talks to one or more OpenAI-compatible servers. It holds no
// per-server state; every call names its endpoint.
type Client struct {
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. It must not set a total
// request Timeout, which would cut long streams short.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(opts ...Option) *Client {
	c := &Client{httpClient: &http.Client{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TrimBase strips trailing slashes so paths can be appended.
func TrimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// NormalizeBaseURL trims whitespace and defaults the scheme to http://.
func NormalizeBaseURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidURL
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return s, nil
}

// ListModels returns the model ids served at base, in server order.
func (c *Client) ListModels(ctx context.Context, base string) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, modelsTimeout)
	defer cancel()

	target := TrimBase(base) + modelsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Op: "models", StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var mr modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}
	return mr.Data, nil
}

// OpenStream posts a streaming completion request and returns the response
// body once the server has accepted it. The caller owns the body and must
// close it. Cancelling ctx aborts both the open and any later body read.
func (c *Client) OpenStream(ctx context.Context, sr StreamRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(chatRequest{
		Model:       sr.Model,
		Messages:    sr.Messages,
		Temperature: sr.Temperature,
		MaxTokens:   sr.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	target := TrimBase(sr.Endpoint) + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: target, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &HTTPError{Op: "request", StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrStreamingUnsupported
	}
	return resp.Body, nil
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
