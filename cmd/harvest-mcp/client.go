package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiError mirrors the error body of non-2xx API responses.
type apiError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// taskStatus mirrors GET /api/v1/task/:id.
type taskStatus struct {
	TaskID   string          `json:"taskId"`
	State    string          `json:"state"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Progress *struct {
		Processed int    `json:"processed"`
		Total     int    `json:"total"`
		Message   string `json:"message"`
	} `json:"progress,omitempty"`
}

func (s taskStatus) terminal() bool { return s.State == "SUCCESS" || s.State == "FAILURE" }

// client talks to the harvest HTTP API.
type client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	pollEvery time.Duration
}

func newClient(baseURL, apiKey string) *client {
	return &client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 60 * time.Second},
		pollEvery: 2 * time.Second,
	}
}

// do sends a request and decodes a 2xx body into out.
func (c *client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Error != nil {
			return fmt.Errorf("[%s] %s", e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("API returned HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// waitTask polls until the task is terminal or ctx ends.
func (c *client) waitTask(ctx context.Context, id string) (taskStatus, error) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()
	for {
		var st taskStatus
		if err := c.do(ctx, http.MethodGet, "/api/v1/task/"+id, nil, &st); err != nil {
			return st, err
		}
		if st.terminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}
