package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Invoker issues a single stateless call to a remote analysis agent.
// No retry logic here, purely one attempt.
type Invoker interface {
	Invoke(ctx context.Context, agent *Agent, payload *Payload) (json.RawMessage, error)
}

// Client implements Invoker over HTTP POST with a hard wall-clock ceiling.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a remote agent client. timeout is the per-call ceiling
// (10 minutes for pipeline stages).
func NewClient(timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke serializes the payload as JSON, POSTs it to the stage's endpoint,
// and returns the response body. One structured log line per call.
func (c *Client) Invoke(ctx context.Context, agent *Agent, payload *Payload) (json.RawMessage, error) {
	if agent.Endpoint == "" {
		return nil, fmt.Errorf("stage %s: %w", agent.Name, ErrEndpointNotConfigured)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", agent.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", agent.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logCall(ctx, agent, start, "failure", err.Error())
		return nil, &TransportError{Stage: agent.Name, Endpoint: agent.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logCall(ctx, agent, start, "failure", fmt.Sprintf("status %d", resp.StatusCode))
		return nil, &TransportError{
			Stage:      agent.Name,
			Endpoint:   agent.Endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", snippet),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logCall(ctx, agent, start, "failure", err.Error())
		return nil, &TransportError{Stage: agent.Name, Endpoint: agent.Endpoint, Err: err}
	}

	c.logCall(ctx, agent, start, "success", "")
	return json.RawMessage(data), nil
}

func (c *Client) logCall(ctx context.Context, agent *Agent, start time.Time, status, errMsg string) {
	attrs := []any{
		slog.String("stage", agent.Name),
		slog.String("endpoint", agent.Endpoint),
		slog.String("status", status),
		slog.Duration("duration", time.Since(start)),
	}
	if errMsg != "" {
		attrs = append(attrs, slog.String("error", errMsg))
		c.logger.WarnContext(ctx, "agent call", attrs...)
		return
	}
	c.logger.InfoContext(ctx, "agent call", attrs...)
}

// Compile-time check.
var _ Invoker = (*Client)(nil)
