package autoplay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps http.Client with the JSON conventions of the API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a new HTTP client with timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// StatusError is returned for any unexpected response status.
type StatusError struct {
	Status int
	Code   string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Body)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// do sends body as JSON and decodes the response into out when the status
// matches want.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any, want int) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != want {
		var e apiError
		_ = json.Unmarshal(data, &e)
		return &StatusError{Status: resp.StatusCode, Code: e.Code, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health probes GET /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
}

// PutDataset stores ids under key.
func (c *HTTPClient) PutDataset(ctx context.Context, key string, ids []string) error {
	return c.do(ctx, http.MethodPut, "/datasets/"+key, map[string]any{"item_ids": ids}, nil, http.StatusOK)
}

// Start begins a session from explicit ids or, when ids is empty, a dataset.
func (c *HTTPClient) Start(ctx context.Context, userID string, ids []string, dataset string) (sessionView, error) {
	var v sessionView
	body := map[string]any{"item_ids": ids, "dataset": dataset}
	err := c.do(ctx, http.MethodPost, "/sessions/"+userID, body, &v, http.StatusCreated)
	return v, err
}

// Session resumes a stored session.
func (c *HTTPClient) Session(ctx context.Context, userID string) (sessionView, error) {
	var v sessionView
	err := c.do(ctx, http.MethodGet, "/sessions/"+userID, nil, &v, http.StatusOK)
	return v, err
}

// Choose submits one choice.
func (c *HTTPClient) Choose(ctx context.Context, userID, choice, sessionID, choiceID string) (sessionView, error) {
	var v sessionView
	body := map[string]string{"choice": choice, "session_id": sessionID, "choice_id": choiceID}
	err := c.do(ctx, http.MethodPost, "/sessions/"+userID+"/choices", body, &v, http.StatusOK)
	return v, err
}

// Ranking fetches the current ranking.
func (c *HTTPClient) Ranking(ctx context.Context, userID string) (ranking, error) {
	var r ranking
	err := c.do(ctx, http.MethodGet, "/sessions/"+userID+"/ranking", nil, &r, http.StatusOK)
	return r, err
}

// Abandon deletes a session.
func (c *HTTPClient) Abandon(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+userID, nil, nil, http.StatusNoContent)
}
