// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
)

// Mode selects the light or dark palette.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// ParseMode validates a theme name from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeDark, ModeLight:
		return Mode(s), nil
	case "":
		return ModeAuto, nil
	}
	return "", errors.Errorf("unknown theme %q", s)
}

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Width is the terminal width used for bubble wrapping.
	Width int

	// ==========================================================================
	// HEADER AND STATUS
	// ==========================================================================

	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	Disclaimer   lipgloss.Style
	StatusBar    lipgloss.Style
	StatusReady  lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusMic    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// MESSAGE BUBBLES
	// ==========================================================================

	UserBubble   lipgloss.Style
	BotBubble    lipgloss.Style
	SystemBubble lipgloss.Style
	UserLabel    lipgloss.Style
	BotLabel     lipgloss.Style
	Timestamp    lipgloss.Style

	// ==========================================================================
	// INPUT AND INDICATORS
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Spinner        lipgloss.Style
	ComposingText  lipgloss.Style
	ErrorText      lipgloss.Style
}

// NewTheme creates a theme in the given mode.
func NewTheme(mode Mode) *Theme {
	t := &Theme{ColorProfile: termenv.ColorProfile()}
	t.SetMode(mode)
	return t
}

// SetMode switches palettes and rebuilds every style.
func (t *Theme) SetMode(mode Mode) {
	switch mode {
	case ModeDark:
		t.IsDark = true
	case ModeLight:
		t.IsDark = false
	default:
		t.IsDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(t.IsDark)
	t.initStyles()
}

// Toggle flips between the dark and light palettes.
func (t *Theme) Toggle() {
	if t.IsDark {
		t.SetMode(ModeLight)
	} else {
		t.SetMode(ModeDark)
	}
}

// Mode returns the palette in use.
func (t *Theme) Mode() Mode {
	if t.IsDark {
		return ModeDark
	}
	return ModeLight
}

// SetWidth updates the width bubbles wrap to.
func (t *Theme) SetWidth(width int) {
	t.Width = width
	t.initStyles()
}

// BubbleWidth is the text width inside a message bubble.
func (t *Theme) BubbleWidth() int {
	w := t.Width - 10
	if w < 20 {
		return 20
	}
	return w
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.Disclaimer = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusReady = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusMic = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MarginLeft(4)

	t.BotBubble = lipgloss.NewStyle().
		Foreground(BotBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(BotBubbleBorder).
		Padding(0, 1).
		MarginRight(4)

	t.SystemBubble = lipgloss.NewStyle().
		Foreground(SystemBubbleFg).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(SystemBubbleBorder).
		Padding(0, 1)

	t.UserLabel = lipgloss.NewStyle().Foreground(Sky).Bold(true)
	t.BotLabel = lipgloss.NewStyle().Foreground(Teal).Bold(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)

	t.Spinner = lipgloss.NewStyle().Foreground(Amber)
	t.ComposingText = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
}
