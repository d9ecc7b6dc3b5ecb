// Package ode provides outcome engines: a JSON-over-HTTP client for a remote
// outcome-determination service and a local weighted draw.
package ode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/instawin/merchprize/internal/domain/outcome"
)

const maxResponseBytes = 1 << 20

// HTTPEngine posts the outcome request to a remote engine.
type HTTPEngine struct {
	url    string
	client *http.Client
}

// HTTPOption configures an HTTPEngine.
type HTTPOption func(*HTTPEngine)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(e *HTTPEngine) { e.client = c }
}

// NewHTTPEngine creates a client for the engine at url.
func NewHTTPEngine(url string, opts ...HTTPOption) (*HTTPEngine, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("outcome engine url is required")
	}
	e := &HTTPEngine{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Determine implements outcome.Engine.
func (e *HTTPEngine) Determine(ctx context.Context, req *outcome.Request) (*outcome.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode outcome request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build outcome request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call outcome engine: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read outcome response: %w", err)
	}
	if len(raw) > maxResponseBytes {
		return nil, fmt.Errorf("outcome response exceeds %d bytes", maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("outcome engine returned %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	return outcome.ParseResult(raw)
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
