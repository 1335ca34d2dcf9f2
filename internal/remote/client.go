package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feveroracle-chatbot/pkg"
)

// Client talks to the remote dialogue backend over HTTP/JSON.  It satisfies
// the controller's Authority and ReportSink interfaces.  Every call is
// bounded by the client timeout so that a dead backend degrades the
// conversation promptly instead of leaving the user waiting.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient constructs a backend client.  token may be empty when the
// backend runs without authentication (development mode).
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// StartSession opens a remote-authoritative session.
func (c *Client) StartSession(ctx context.Context) (*pkg.StartSessionResponse, error) {
	var resp pkg.StartSessionResponse
	if err := c.postJSON(ctx, "/api/chatbot/start-session", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitAnswer forwards one raw answer to the backend.
func (c *Client) SubmitAnswer(ctx context.Context, req pkg.MessageRequest) (*pkg.MessageResponse, error) {
	var resp pkg.MessageResponse
	if err := c.postJSON(ctx, "/api/chatbot/message", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitReport flushes a finished assessment to the backend's report store.
func (c *Client) SubmitReport(ctx context.Context, req pkg.ReportRequest) error {
	return c.postJSON(ctx, "/api/chatbot/submit-report", req, nil)
}

// postJSON posts a JSON body and decodes the JSON response into out, when
// out is non-nil.  Any non-2xx status is an error.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for the log line; the caller only
		// needs to know the call failed.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("call %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
