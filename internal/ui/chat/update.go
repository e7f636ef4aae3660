// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/jeranaias/medbot-tui/internal/config"
	"github.com/jeranaias/medbot-tui/internal/ui/styles"
	"github.com/jeranaias/medbot-tui/internal/voice"
)

// uploadHint is shown when Ctrl+O is pressed with an empty input.
const uploadHint = "Type the path of a report image, then press Ctrl+O."

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// The controller renders into the sink while holding its lock, and the sink
// blocks until Update receives the message. Every call into the app
// therefore runs inside a command, never on the Update goroutine. Sends are
// the exception: App.Submit only queues, and its worker keeps them in order.

func (m Model) cancelCmd() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		a.Cancel()
		return nil
	}
}

func (m Model) uploadCmd(path string) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		a.Upload(context.Background(), path)
		return nil
	}
}

func (m Model) speakCmd() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		a.Speak(context.Background())
		return nil
	}
}

func (m Model) micCmd() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		a.ToggleMic()
		return nil
	}
}

func (m Model) applyConfigCmd(cfg *config.Config) tea.Cmd {
	a, log := m.app, m.log
	return func() tea.Msg {
		a.ApplyConfig(cfg)
		// A reload may follow a change to the installed voices.
		if err := a.VoicesChanged(context.Background()); err != nil && !errors.Is(err, voice.ErrUnsupported) {
			log.Debug().Err(err).Msg("voice refresh failed")
		}
		return nil
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all messages for the chat screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case BubbleAddedMsg:
		b := &bubble{id: msg.ID, role: msg.Role, text: msg.Text, at: msg.At}
		m.bubbles = append(m.bubbles, b)
		m.index[b.id] = b
		m.refresh(true)
		return m, nil

	case BubbleUpdatedMsg:
		b, ok := m.index[msg.ID]
		if !ok || msg.Seq <= b.seq {
			return m, nil
		}
		b.text = msg.Text
		b.seq = msg.Seq
		m.refresh(false)
		return m, nil

	case ComposingMsg:
		m.composing = msg.On
		if msg.On {
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if !m.composing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ListeningMsg:
		m.listening = msg.On
		return m, nil

	case TranscriptMsg:
		m.input.SetValue(voice.AppendTranscript(m.input.Value(), msg.Text))
		m.input.CursorEnd()
		return m, nil

	case AlertMsg:
		m.notice = msg.Text
		m.addSystem(msg.Text)
		return m, nil

	case ConfigChangedMsg:
		return m, m.applyConfig(msg.Config)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Interrupt):
		if m.composing {
			return m, m.cancelCmd()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.composing {
			return m, m.cancelCmd()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.notice = ""
		m.app.Submit(text)
		return m, nil

	case key.Matches(msg, m.keys.Upload):
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			m.notice = uploadHint
			return m, nil
		}
		m.input.Reset()
		m.notice = ""
		return m, m.uploadCmd(path)

	case key.Matches(msg, m.keys.Speak):
		return m, m.speakCmd()

	case key.Matches(msg, m.keys.Mic):
		return m, m.micCmd()

	case key.Matches(msg, m.keys.Theme):
		m.theme.Toggle()
		m.spinner.Style = m.theme.Spinner
		m.refresh(false)
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// applyConfig takes live settings from a reloaded file.
func (m *Model) applyConfig(cfg *config.Config) tea.Cmd {
	if mode, err := styles.ParseMode(cfg.UI.Theme); err == nil && mode != styles.ModeAuto && mode != m.theme.Mode() {
		m.theme.SetMode(mode)
		m.spinner.Style = m.theme.Spinner
	}
	m.renderMarkdown = cfg.UI.RenderMarkdown
	m.showTimestamps = cfg.UI.ShowTimestamps
	m.refresh(false)
	m.log.Info().Str("theme", string(m.theme.Mode())).Msg("settings reloaded")
	return m.applyConfigCmd(cfg)
}

func (m *Model) addSystem(text string) {
	b := &bubble{id: -len(m.bubbles) - 1, role: RoleSystem, text: text, at: time.Now()}
	m.bubbles = append(m.bubbles, b)
	m.refresh(true)
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.theme.SetWidth(width)
	m.input.SetWidth(width - 2)

	vh := height - chromeHeight
	if vh < 1 {
		vh = 1
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.ready = true
	m.refresh(true)
}
