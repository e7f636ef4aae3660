// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client provides the HTTP client for the MedBot backend.
//
// The backend exposes four endpoints: /chat, /upload, /train and /ping.
// Chat replies may arrive as a chunked stream or as a single JSON document;
// the client only decides which, and leaves reading the body to the caller
// so a turn can render chunks as they arrive.
//
// # Key Types
//
//   - Client: backend client with builder-style configuration
//   - ChatRequest / ChatResponse: the /chat wire shapes
//   - HTTPError: non-2xx reply carrying the status and body text verbatim
//   - QAPair / TrainResult: the /train wire shapes
//
// # Usage
//
//	c := client.New("http://127.0.0.1:5000").WithStreamMode(client.StreamAuto)
//	resp, err := c.Chat(ctx, client.ChatRequest{SessionID: id, Message: "hi"})
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
package client
