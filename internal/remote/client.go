// Package remote implements the REST client and the per-entity sync
// handlers that translate local records into backend API calls.
//
// All endpoints speak JSON over HTTPS with bearer-token auth and the
// standard response envelope {succeeded, message, data}. Failures are
// classified into the sync core's taxonomy: 4xx is a permanent
// RemoteRejectedError, 5xx and transport errors are TransientError, and
// 409 carries the server's copy of the record as a ConflictError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// TokenSource supplies the bearer token for outbound requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config holds client configuration.
type Config struct {
	// BaseURL of the backend, e.g. "https://api.example.com/v1".
	BaseURL string

	// DeviceID identifies this device in the X-Device-ID header.
	DeviceID string

	// Timeout for a single HTTP request (default: 30s).
	Timeout time.Duration

	// HTTPClient overrides the default client (mainly for tests).
	HTTPClient *http.Client

	// Logger for request activity (default: stderr logger).
	Logger *log.Logger
}

// Client talks to the patrol backend.
type Client struct {
	baseURL  string
	deviceID string
	http     *http.Client
	tokens   TokenSource
	logger   *log.Logger
}

// NewClient creates a backend client.
//
// tokens may be nil for the unauthenticated auth endpoints; every other
// call requires it.
func NewClient(config Config, tokens TokenSource) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		deviceID: config.DeviceID,
		http:     httpClient,
		tokens:   tokens,
		logger:   logger,
	}, nil
}

// envelope is the standard response wrapper used by every endpoint.
type envelope struct {
	Succeeded bool            `json:"succeeded"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

// apiError is the error envelope returned on non-2xx responses.
type apiError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

// postJSON sends a JSON body and returns the envelope's data field.
func (c *Client) postJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, true)
}

// getJSON fetches the envelope's data field from a GET endpoint.
func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req, true)
}

// postJSONNoAuth is postJSON without a bearer token, for the auth endpoints.
func (c *Client) postJSONNoAuth(ctx context.Context, path string, body any) (json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, false)
}

// do executes a request and classifies the outcome.
func (c *Client) do(req *http.Request, authed bool) (json.RawMessage, error) {
	if authed {
		if c.tokens == nil {
			return nil, &RemoteRejectedError{StatusCode: 401, Message: "no token source configured"}
		}
		tok, err := c.tokens.Token(req.Context())
		if err != nil {
			return nil, &RemoteRejectedError{StatusCode: 401, Message: fmt.Sprintf("no auth token: %v", err)}
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// decodeResponse maps the HTTP status and envelope to the error taxonomy.
func decodeResponse(resp *http.Response) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, &TransientError{Err: fmt.Errorf("decode envelope: %w", err)}
		}
		if !env.Succeeded {
			return nil, &RemoteRejectedError{StatusCode: resp.StatusCode, Message: env.Message}
		}
		return env.Data, nil

	case resp.StatusCode == http.StatusConflict:
		var remote RemoteRecord
		if err := json.Unmarshal(extractErrorDetails(body), &remote); err != nil {
			return nil, &RemoteRejectedError{StatusCode: resp.StatusCode, Message: "conflict without server record"}
		}
		return nil, &ConflictError{Remote: remote}

	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return nil, &TransientError{Err: fmt.Errorf("server returned %d", resp.StatusCode)}

	default:
		var ae apiError
		_ = json.Unmarshal(body, &ae)
		return nil, &RemoteRejectedError{
			StatusCode: resp.StatusCode,
			Code:       ae.Code,
			Message:    ae.Message,
		}
	}
}

// extractErrorDetails pulls the details field out of an error envelope,
// falling back to the raw body for servers that return the record directly.
func extractErrorDetails(body []byte) []byte {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && len(ae.Details) > 0 {
		return ae.Details
	}
	return body
}
