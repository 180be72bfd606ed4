package ai

import (
	"errors"
	"fmt"
)

// ErrStreamingUnsupported means the server answered without a readable body,
// so the caller may want to fall back to a non-streaming request.
var ErrStreamingUnsupported = errors.New("no response body (streaming not supported by this endpoint)")

// ConnectionError means the request never got a response.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not reach %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// HTTPError carries a non-2xx status and whatever body text came with it.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %d %s", e.Op, e.StatusCode, e.Body)
}

// StreamError is a transport failure after the stream was accepted.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
