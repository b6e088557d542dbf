// Package transport opens the backend's per-run event stream and frames its
// Server-Sent Events into stream events. It is deliberately thin: framing
// and connection errors live here, every reconciliation decision lives in
// internal/engine.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cvforge/cvforge/internal/engine"
	"github.com/cvforge/cvforge/internal/log"
	"github.com/cvforge/cvforge/internal/stream"
)

// ErrBadStatus indicates the backend refused the stream request.
var ErrBadStatus = errors.New("unexpected response status")

const (
	streamPath = "/v1/chat/stream"

	// eventBufferSize absorbs chunk bursts while the engine is busy
	// merging, without unbounded memory growth.
	eventBufferSize = 100

	// maxFrameSize bounds a single SSE frame; anything larger is a
	// protocol violation.
	maxFrameSize = 1 << 20

	defaultTimeout = 5 * time.Minute
)

// Config for the SSE client.
type Config struct {
	// BaseURL of the backend, e.g. "https://api.cvforge.dev".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// HTTPClient overrides the default client; nil uses a client with
	// defaultTimeout. Tests inject the httptest client here.
	HTTPClient *http.Client
}

// Client implements engine.Transport over SSE.
type Client struct {
	logger     log.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient returns a transport client for the given backend.
func NewClient(logger log.Logger, cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		logger:     logger,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

// chatRequest is the JSON body posted to open a run.
type chatRequest struct {
	ConversationID  string         `json:"conversation_id,omitempty"`
	Message         string         `json:"message"`
	ContextOverride map[string]any `json:"context_override,omitempty"`
}

// Open posts the user turn and returns a channel of decoded events. The
// channel closes when the connection ends or ctx is canceled. Malformed
// frames are skipped with a warning; they never abort the stream.
func (c *Client) Open(ctx context.Context, req engine.SendRequest) (<-chan stream.Event, error) {
	body, err := json.Marshal(chatRequest{
		ConversationID:  req.ConversationID,
		Message:         req.Text,
		ContextOverride: req.ContextOverride,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	ch := make(chan stream.Event, eventBufferSize)
	go c.consume(ctx, resp.Body, ch)
	return ch, nil
}

// consume reads SSE frames until EOF or cancellation. Per the SSE format,
// consecutive "data:" lines belong to one frame, terminated by a blank
// line; ":" lines are comments.
func (c *Client) consume(ctx context.Context, body io.ReadCloser, ch chan<- stream.Event) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive

		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))

		case line == "":
			if len(dataLines) == 0 {
				continue
			}
			payload := strings.Join(dataLines, "\n")
			dataLines = nil

			ev, err := stream.DecodeFrame([]byte(payload))
			if err != nil {
				// One malformed frame never aborts the stream.
				c.logger.Warn("malformed frame skipped", "error", err)
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("event stream read error", "error", err)
	}
}

// Compile-time interface check.
var _ engine.Transport = (*Client)(nil)
