// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/jeranaias/medbot-tui/internal/util"
)

const disclaimer = "educational only, not a substitute for professional medical advice"

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Starting MedBot..."
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.renderComposing())
	sb.WriteString("\n")
	sb.WriteString(m.theme.InputContainer.Width(m.width).Render(m.input.View()))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	return sb.String()
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("AI MedBot")
	note := m.theme.Disclaimer.Render(util.TruncateWidth(disclaimer, m.width-14))
	return m.theme.Header.Width(m.width).Render(title + "  " + note)
}

func (m Model) renderComposing() string {
	if !m.composing {
		return ""
	}
	return m.spinner.View() + " " + m.theme.ComposingText.Render("MedBot is composing...")
}

func (m Model) renderStatus() string {
	var state string
	switch {
	case m.listening:
		state = m.theme.StatusMic.Render("● listening")
	case m.composing:
		state = m.theme.StatusBusy.Render("● busy")
	default:
		state = m.theme.StatusReady.Render("● ready")
	}

	right := m.notice
	if right == "" {
		parts := make([]string, 0, len(m.keys.ShortHelp()))
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
		}
		right = strings.Join(parts, "  ")
	} else {
		right = m.theme.ErrorText.Render(util.FirstLine(right))
	}

	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(state + "  " + right)
}

// refresh rebuilds the viewport content. Follow scrolls to the newest
// message even if the user had scrolled up.
func (m *Model) refresh(follow bool) {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()

	parts := make([]string, 0, len(m.bubbles))
	for _, b := range m.bubbles {
		parts = append(parts, m.renderBubble(b))
	}
	m.viewport.SetContent(strings.Join(parts, "\n"))

	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderBubble(b *bubble) string {
	key := renderKey{
		width:    m.width,
		dark:     m.theme.IsDark,
		markdown: m.renderMarkdown,
		stamps:   m.showTimestamps,
		seq:      b.seq,
		valid:    true,
	}
	if b.cacheKey == key {
		return b.cached
	}

	width := m.theme.BubbleWidth()
	var label, body string
	switch b.role {
	case RoleUser:
		label = m.theme.UserLabel.Render("You")
		body = m.theme.UserBubble.Width(width).Render(b.text)
	case RoleBot:
		label = m.theme.BotLabel.Render("MedBot")
		text := b.text
		if m.renderMarkdown {
			if !m.md.matches(width, m.theme.IsDark) {
				m.md = newMarkdown(width, m.theme.IsDark)
			}
			text = m.md.render(text)
		}
		if text == "" {
			text = " "
		}
		body = m.theme.BotBubble.Width(width).Render(text)
	default:
		body = m.theme.SystemBubble.Width(width).Render(b.text)
	}

	if m.showTimestamps && !b.at.IsZero() {
		label += " " + m.theme.Timestamp.Render(b.at.Format("15:04"))
	}
	out := body
	if label != "" {
		out = label + "\n" + body
	}

	b.cached = out
	b.cacheKey = key
	return out
}
