// Package api is the HTTP client of the offers backend REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "http://localhost:8000/api/v1"
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	// Message is the server-provided "error" (or "detail") field, if any
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap classifies the response so callers can use errors.Is(err, apperrors.ErrUnauthorized)
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.StatusCode >= 500:
		return apperrors.ErrServer
	default:
		return apperrors.ErrBadRequest
	}
}

// ServerMessage returns the message the backend attached to err, or "" when there is none
func ServerMessage(err error) string {
	var apiErr *APIError
	if apperrors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its transport is wrapped by the
// authenticating Transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUnauthorizedHandler registers the session-invalidated signal raised when a
// credentialed request is answered with 401
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// Client talks to the backend on behalf of one session
type Client struct {
	baseURL        string
	http           *http.Client
	timeout        time.Duration
	onUnauthorized func()
}

// New creates a client for baseURL that authenticates with tokens from source
func New(baseURL string, source oauth2.TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	var base http.RoundTripper
	if c.http != nil {
		base = c.http.Transport
	}
	c.http = &http.Client{
		Timeout: c.timeout,
		Transport: &Transport{
			Source:         source,
			Base:           base,
			OnUnauthorized: c.onUnauthorized,
		},
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}

	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Error
		if apiErr.Message == "" {
			apiErr.Message = payload.Detail
		}
	}
	return apiErr
}

func pathf(format string, segment string) string {
	return fmt.Sprintf(format, url.PathEscape(segment))
}
