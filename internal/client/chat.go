// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"io"
	"mime"
	"net/http"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is a successful /chat reply. The caller must close Body.
//
// Streaming reports whether Body should be consumed chunk by chunk; when
// false the whole body is expected to be a single JSON document.
type ChatResponse struct {
	Body      io.ReadCloser
	Streaming bool
}

// Chat posts a message to the chat endpoint. Non-2xx replies are returned
// as *HTTPError before the body is handed out.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, c.ChatURL(), req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json, text/plain, text/event-stream")

	resp, err := c.do(c.streamHTTP, httpReq, "chat")
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Body:      resp.Body,
		Streaming: c.shouldStream(resp),
	}, nil
}

func (c *Client) shouldStream(resp *http.Response) bool {
	switch c.streamMode {
	case StreamAlways:
		return true
	case StreamNever:
		return false
	}
	if resp.ContentLength < 0 {
		return true
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return mediaType == "text/event-stream" || mediaType == "text/plain"
}
