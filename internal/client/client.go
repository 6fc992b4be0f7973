// Package client is a typed HTTP client for the portal API. Payloads are
// normalized into session and workflow types at this boundary.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/velia-hr/portal/internal/credential"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Env     string
	Timeout time.Duration
	Debug   bool
}

// Client calls the portal API. Mutations are never retried.
type Client struct {
	http *resty.Client
	env  string

	mu     sync.RWMutex
	roleID string
}

// New creates a Client for cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetDebug(cfg.Debug)

	return &Client{http: h, env: cfg.Env}
}

// SetCredential sets the role_id sent as bearer credential. An empty value
// makes subsequent calls anonymous.
func (c *Client) SetCredential(roleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roleID = roleID
}

// Env returns the environment the client formats credentials for.
func (c *Client) Env() string {
	return c.env
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// UserMessage returns the server-provided text, if any.
func (e *APIError) UserMessage() string {
	return e.Message
}

type envelope[T any] struct {
	Data  T          `json:"data"`
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	c.mu.RLock()
	if h := credential.Header(c.roleID, c.env); h != "" {
		req.SetHeader("Authorization", h)
	}
	c.mu.RUnlock()
	return req
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var (
		out    envelope[T]
		failed envelope[any]
		zero   T
	)
	req := c.request(ctx).SetResult(&out).SetError(&failed)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return zero, fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		if failed.Error != nil {
			apiErr.Code = failed.Error.Code
			apiErr.Message = failed.Error.Message
		}
		return zero, apiErr
	}
	return out.Data, nil
}

func get[T any](ctx context.Context, c *Client, path string) (T, error) {
	return call[T](ctx, c, http.MethodGet, path, nil)
}

func post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return call[T](ctx, c, http.MethodPost, path, body)
}

func put[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return call[T](ctx, c, http.MethodPut, path, body)
}
