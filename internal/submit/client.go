package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error is a structured backend rejection: a message plus optional
// field-level detail. It is retryable from the caller's perspective.
type Error struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Submitter delivers an assembled payload to the backend.
type Submitter interface {
	Submit(ctx context.Context, p Payload) (*Result, error)
}

// Client posts submissions to the backend over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a submission client. Returns error if baseURL is empty.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Submit posts the payload to the submissions endpoint. A 2xx response
// yields the backend's Result; a structured error body yields *Error.
func (c *Client) Submit(ctx context.Context, p Payload) (*Result, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal submission payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/submissions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var backendErr Error
		if decodeErr := json.NewDecoder(resp.Body).Decode(&backendErr); decodeErr == nil && backendErr.Message != "" {
			return nil, &backendErr
		}
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode submission response: %w", err)
	}
	return &result, nil
}
