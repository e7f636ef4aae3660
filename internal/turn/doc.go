// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn runs chat turns against the MedBot backend.
//
// A turn is one user message and the bot reply it produces. The Controller
// owns the turn lifecycle: it echoes the user message, opens a bot bubble,
// sends the request, renders streamed text as it arrives, retries failures
// with a linear backoff and finally replays the reply one character at a
// time.
//
// # Cancellation
//
// Only one turn is in flight per controller. StartTurn cancels the previous
// turn before the new one issues its request, and every bubble write made
// before success checks that its turn is still current under the
// controller lock. A superseded turn therefore never touches its bubble
// again once a newer turn has begun.
//
// # Usage
//
//	c := turn.NewController(backend, sink, turn.NewSessionID()).
//	    WithLogger(log)
//	t := c.StartTurn("I have a headache")
//	<-t.Done()
package turn
