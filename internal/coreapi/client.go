// Package coreapi is the JSON-over-HTTP client for the service's own API,
// used by the core as its catalog, registration and safety collaborators.
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or network timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// APIError is a non-2xx response. Code and Detail come from the error body.
type APIError struct {
	Op     string
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d %s: %s", e.Op, e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Detail)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	op := method + " " + path
	if !c.Enabled() {
		return &TransportError{Op: op, Err: errors.New("core api base url is not configured")}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode >= 300 {
		return decodeAPIError(op, resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func decodeAPIError(op string, status int, body []byte) *APIError {
	out := &APIError{Op: op, Status: status}
	var payload struct {
		Detail any    `json:"detail"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		out.Code = payload.Code
		switch d := payload.Detail.(type) {
		case string:
			out.Detail = d
		case nil:
		default:
			buf, _ := json.Marshal(d)
			out.Detail = string(buf)
		}
	}
	if out.Detail == "" {
		out.Detail = strings.TrimSpace(string(body))
	}
	return out
}
