// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Turn.
type Status int

const (
	Pending Status = iota
	Streaming
	Succeeded
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Streaming:
		return "streaming"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further network work happens in this state.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// Turn is one user message and the bot reply it produces.
type Turn struct {
	ID        string
	SessionID string
	UserText  string

	ctx    context.Context
	cancel context.CancelCauseFunc
	target RenderTarget
	done   chan struct{}

	mu      sync.Mutex
	botText string
	status  Status
	attempt int
}

func newTurn(parent context.Context, sessionID, text string) *Turn {
	ctx, cancel := context.WithCancelCause(parent)
	return &Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserText:  text,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    Pending,
	}
}

// Status returns the current status.
func (t *Turn) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// BotText returns the last text written to the turn's bot bubble.
func (t *Turn) BotText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.botText
}

// Attempt returns the 1-based attempt counter, or 0 before the first request.
func (t *Turn) Attempt() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt
}

// Done is closed once the turn is terminal and any typing replay has finished.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

func (t *Turn) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

func (t *Turn) setAttempt(n int) {
	t.mu.Lock()
	t.attempt = n
	t.mu.Unlock()
}

func (t *Turn) setBotText(s string) {
	t.mu.Lock()
	t.botText = s
	t.mu.Unlock()
}

// NewSessionID returns an opaque id that stays fixed for the process lifetime.
func NewSessionID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "session-" + id[:10]
}
