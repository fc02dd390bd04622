// Package resource performs authenticated calls against the remote API.
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/starford/scribe/internal/apperr"
)

// maxBody caps how much of a response is read into memory.
const maxBody int64 = 64 << 20

type responseKind int

const (
	kindJSON responseKind = iota
	kindBlob
)

// Blob is a binary response body.
type Blob struct {
	Data        []byte
	ContentType string
}

// Client issues requests relative to a fixed base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client. baseURL is resolved once here and never re-read.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("resource: base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("resource: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("resource: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Get issues a GET and returns the raw JSON payload.
func (c *Client) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	raw, _, err := c.do(ctx, http.MethodGet, path, token, nil, "", kindJSON)
	return raw, err
}

// GetBlob issues a GET and returns the body as binary content.
func (c *Client) GetBlob(ctx context.Context, path, token string) (*Blob, error) {
	data, ct, err := c.do(ctx, http.MethodGet, path, token, nil, "", kindBlob)
	if err != nil {
		return nil, err
	}
	return &Blob{Data: data, ContentType: ct}, nil
}

// Post serializes body as JSON and posts it.
func (c *Client) Post(ctx context.Context, path, token string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("resource: encode body: %w", err)
	}
	raw, _, err := c.do(ctx, http.MethodPost, path, token, bytes.NewReader(payload), "application/json", kindJSON)
	return raw, err
}

// PostForm posts a multipart body. The content type comes from the form so
// the boundary stays intact.
func (c *Client) PostForm(ctx context.Context, path, token string, form *Form) (json.RawMessage, error) {
	body, contentType, err := form.encode()
	if err != nil {
		return nil, err
	}
	raw, _, err := c.do(ctx, http.MethodPost, path, token, body, contentType, kindJSON)
	return raw, err
}

// Delete issues a DELETE. An empty response body yields a nil payload.
func (c *Client) Delete(ctx context.Context, path, token string) (json.RawMessage, error) {
	raw, _, err := c.do(ctx, http.MethodDelete, path, token, nil, "", kindJSON)
	return raw, err
}

// do is the single transport path shared by every verb.
func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, kind responseKind) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, "", fmt.Errorf("resource: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("Authorization", "")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("resource: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", fmt.Errorf("resource: read %s %s: %w", method, path, err)
	}

	c.logger.Debug("resource: request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(data)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &apperr.HTTPError{Status: resp.StatusCode, Body: string(data)}
	}

	if kind == kindBlob {
		return data, resp.Header.Get("Content-Type"), nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", nil
	}
	if !json.Valid(data) {
		return nil, "", &apperr.DecodeError{Type: "json", Cause: errors.New("response is not valid JSON")}
	}
	return data, "", nil
}
