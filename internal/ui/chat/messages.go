// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/medbot-tui/internal/config"
)

// Role says who a bubble belongs to.
type Role int

const (
	RoleUser Role = iota
	RoleBot
	RoleSystem
)

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// BubbleAddedMsg appends a bubble to the conversation.
type BubbleAddedMsg struct {
	ID   int
	Role Role
	Text string
	At   time.Time
}

// BubbleUpdatedMsg carries the full text of an existing bubble. Seq grows
// with every write, so a late delivery of older text is dropped.
type BubbleUpdatedMsg struct {
	ID   int
	Seq  uint64
	Text string
}

// ComposingMsg shows or hides the composing indicator.
type ComposingMsg struct {
	On bool
}

// =============================================================================
// VOICE MESSAGES
// =============================================================================

// ListeningMsg reports the microphone state.
type ListeningMsg struct {
	On bool
}

// TranscriptMsg adds recognized speech to the input.
type TranscriptMsg struct {
	Text string
}

// AlertMsg is a notice the user has to see.
type AlertMsg struct {
	Text string
}

// =============================================================================
// SETTINGS MESSAGES
// =============================================================================

// ConfigChangedMsg delivers a reloaded configuration file.
type ConfigChangedMsg struct {
	Config *config.Config
}
