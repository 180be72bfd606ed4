package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"object":"list","data":[{"id":"qwen2.5-7b","owned_by":"me"},{"id":"llama-3.2-3b"}]}`))
	}))
	defer srv.Close()

	models, err := NewClient().ListModels(context.Background(), srv.URL+"///")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "qwen2.5-7b" || models[1].ID != "llama-3.2-3b" {
		t.Errorf("unexpected models: %+v", models)
	}
}

func TestListModels_MissingDataIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	models, err := NewClient().ListModels(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 0 {
		t.Errorf("expected no models, got %v", models)
	}
}

func TestListModels_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no models loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient().ListModels(context.Background(), srv.URL)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", httpErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "models failed: 503 no models loaded") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestListModels_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewClient().ListModels(context.Background(), base)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %T: %v", err, err)
	}
}

func TestOpenStream_SendsRequestBody(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	body, err := NewClient().OpenStream(context.Background(), StreamRequest{
		Endpoint:    srv.URL + "/",
		Model:       "qwen",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: 0.2,
		MaxTokens:   64,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "data: [DONE]\n\n" {
		t.Errorf("unexpected body %q", data)
	}

	if !got.Stream {
		t.Error("stream flag must be set")
	}
	if got.Model != "qwen" || got.MaxTokens != 64 || got.Temperature != 0.2 {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestOpenStream_HTTPErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	_, err := NewClient().OpenStream(context.Background(), StreamRequest{Endpoint: srv.URL})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if httpErr.StatusCode != 400 || !strings.Contains(httpErr.Body, "model not loaded") {
		t.Errorf("unexpected error: %+v", httpErr)
	}
	if !strings.HasPrefix(err.Error(), "request failed: 400") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestOpenStream_NoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := NewClient().OpenStream(context.Background(), StreamRequest{Endpoint: srv.URL})
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Fatalf("expected ErrStreamingUnsupported, got %v", err)
	}
}

func TestOpenStream_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewClient().OpenStream(context.Background(), StreamRequest{Endpoint: base})
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %T: %v", err, err)
	}
	if !strings.Contains(connErr.URL, "/v1/chat/completions") {
		t.Errorf("expected URL in error, got %q", connErr.URL)
	}
}

type countingTransport struct {
	next  http.RoundTripper
	count int
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.count++
	return c.next.RoundTrip(r)
}

func TestWithHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"m"}]}`))
	}))
	defer srv.Close()

	tr := &countingTransport{next: srv.Client().Transport}
	client := NewClient(WithHTTPClient(&http.Client{Transport: tr}))

	if _, err := client.ListModels(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.count != 1 {
		t.Errorf("expected the injected client to carry 1 request, got %d", tr.count)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"localhost:1234", "http://localhost:1234", false},
		{"  http://10.0.0.5:8080  ", "http://10.0.0.5:8080", false},
		{"HTTPS://example.com", "HTTPS://example.com", false},
		{"", "", true},
		{"   ", "", true},
		{"http://", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeBaseURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeBaseURL(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeBaseURL(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTrimBase(t *testing.T) {
	if got := TrimBase("http://x:1//"); got != "http://x:1" {
		t.Errorf("TrimBase = %q", got)
	}
}
