// Package jsonapi is the small JSON-over-HTTP client shared by the provider
// adapters that talk to their APIs directly (Ollama and Anthropic).
package jsonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx response.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.Status, e.Body)
}

// Permanent reports whether repeating the request cannot help: a client
// error other than a timeout or rate limit.
func (e *StatusError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500 &&
		e.Status != http.StatusRequestTimeout && e.Status != http.StatusTooManyRequests
}

// Is makes permanent failures match domain.ErrProviderConfig so the retry
// layer gives up on them.
func (e *StatusError) Is(target error) bool {
	return target == domain.ErrProviderConfig && e.Permanent()
}

// Client sends JSON requests to one API base URL.
type Client struct {
	service string
	baseURL string
	header  http.Header
	http    *http.Client
}

// New returns a client for service at baseURL. header is sent on every
// request and may be nil.
func New(service, baseURL string, timeout time.Duration, header http.Header) *Client {
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  header,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends in as JSON to path and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.service, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

// Get requests path and decodes the response into out, which may be nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, http.NoBody, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.service, err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Service: c.service, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	return nil
}
