// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"

	"github.com/jeranaias/medbot-tui/internal/client"
)

// RenderTarget is a displayed bot bubble.
type RenderTarget interface {
	// Replace sets the full bubble text.
	Replace(text string)
	// Append adds text to the end of the bubble.
	Append(text string)
}

// Sink creates bubbles and toggles the composing indicator.
//
// The controller calls Sink methods while holding its lock; implementations
// must not call back into the Controller from them.
type Sink interface {
	UserMessage(text string)
	BotMessage() RenderTarget
	SetComposing(on bool)
}

// Transport sends chat requests. *client.Client satisfies it.
type Transport interface {
	Chat(ctx context.Context, req client.ChatRequest) (*client.ChatResponse, error)
	ChatURL() string
}
