package ai

import (
	"context"
	"io"
)

// Streamer opens a streaming completion. *Client implements it; tests and
// alternative transports can supply their own.
type Streamer interface {
	// OpenStream returns the raw event-stream body once the server has
	// accepted the request. Failures before that point are returned as
	// *ConnectionError, *HTTPError or ErrStreamingUnsupported.
	OpenStream(ctx context.Context, req StreamRequest) (io.ReadCloser, error)
}

// ModelLister discovers the models a server offers.
type ModelLister interface {
	ListModels(ctx context.Context, base string) ([]Model, error)
}

var (
	_ Streamer    = (*Client)(nil)
	_ ModelLister = (*Client)(nil)
)
