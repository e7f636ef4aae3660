// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdown renders bot replies. A renderer is bound to one width and
// palette, so it is rebuilt when either changes.
type markdown struct {
	renderer *glamour.TermRenderer
	width    int
	dark     bool
}

func newMarkdown(width int, dark bool) *markdown {
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	return &markdown{renderer: r, width: width, dark: dark}
}

func (md *markdown) matches(width int, dark bool) bool {
	return md != nil && md.width == width && md.dark == dark
}

// render returns text as terminal markdown, or text unchanged if rendering fails.
func (md *markdown) render(text string) string {
	if md == nil || md.renderer == nil || strings.TrimSpace(text) == "" {
		return text
	}
	out, err := md.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
