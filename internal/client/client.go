// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client talks to the MedBot backend over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Configuration constants for the MedBot backend.
const (
	// DefaultBaseURL is where the backend listens when started with its defaults.
	DefaultBaseURL = "http://127.0.0.1:5000"

	// DefaultTimeout bounds non-streaming requests (upload, train, ping).
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	userAgent = "medbot-tui/0.1.0"
)

// StreamMode selects how chat replies are read.
type StreamMode string

const (
	// StreamAuto streams when the server does not announce a body length.
	StreamAuto StreamMode = "auto"
	// StreamAlways reads every reply incrementally.
	StreamAlways StreamMode = "always"
	// StreamNever always reads and parses the whole body.
	StreamNever StreamMode = "never"
)

// ParseStreamMode maps a config string to a StreamMode.
func ParseStreamMode(s string) (StreamMode, error) {
	switch StreamMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", StreamAuto:
		return StreamAuto, nil
	case StreamAlways:
		return StreamAlways, nil
	case StreamNever:
		return StreamNever, nil
	}
	return "", errors.Errorf("unknown stream mode %q", s)
}

// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("response exceeded maximum size")

// HTTPError is a non-2xx reply from the backend. Body holds the response text verbatim.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	switch e.Op {
	case "upload":
		return fmt.Sprintf("Upload failed %d: %s", e.StatusCode, e.Body)
	case "train":
		return fmt.Sprintf("Train failed %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("Server error %d: %s", e.StatusCode, e.Body)
}

// Client is a client for the MedBot backend.
type Client struct {
	baseURL string
	// streamHTTP has no client timeout; chat turns are bounded by their context.
	streamHTTP *http.Client
	httpClient *http.Client
	streamMode StreamMode
	log        zerolog.Logger
}

// New creates a client for the backend at baseURL. An empty baseURL selects DefaultBaseURL.
func New(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		streamHTTP: &http.Client{Transport: transport},
		httpClient: &http.Client{Transport: transport, Timeout: DefaultTimeout},
		streamMode: StreamAuto,
		log:        zerolog.Nop(),
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithStreamMode sets how chat replies are read.
func (c *Client) WithStreamMode(mode StreamMode) *Client {
	c.streamMode = mode
	return c
}

// WithLogger sets the logger used for request tracing.
func (c *Client) WithLogger(log zerolog.Logger) *Client {
	c.log = log.With().Str("component", "client").Logger()
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// ChatURL returns the chat endpoint.
func (c *Client) ChatURL() string { return c.baseURL + "/chat" }

// UploadURL returns the OCR upload endpoint.
func (c *Client) UploadURL() string { return c.baseURL + "/upload" }

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func (c *Client) newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// do sends req and converts non-2xx replies into *HTTPError. On success the
// caller owns resp.Body.
func (c *Client) do(hc *http.Client, req *http.Request, op string) (*http.Response, error) {
	c.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("request")

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request", op)
	}
	c.log.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := readBody(resp.Body)
		return nil, &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// readBody reads at most MaxResponseSize bytes.
func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, errors.Wrapf(ErrResponseTooLarge, "limit %d bytes", MaxResponseSize)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, url, op string, out any) error {
	req, err := c.newJSONRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(c.httpClient, req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "parse %s response", op)
	}
	return nil
}
