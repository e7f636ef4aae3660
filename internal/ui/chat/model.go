// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/medbot-tui/internal/app"
	"github.com/jeranaias/medbot-tui/internal/config"
	"github.com/jeranaias/medbot-tui/internal/ui/styles"
)

// Rows taken by everything except the conversation viewport.
const (
	headerHeight = 1
	inputHeight  = 3
	chromeHeight = headerHeight + 1 + inputHeight + 1 + 1
)

// Options configures the chat view.
type Options struct {
	Config *config.Config
	// ConfigPath is watched for live changes when set.
	ConfigPath string
	Logger     zerolog.Logger
}

// bubble is one rendered message.
type bubble struct {
	id   int
	role Role
	text string
	seq  uint64
	at   time.Time

	cached   string
	cacheKey renderKey
}

type renderKey struct {
	width    int
	dark     bool
	markdown bool
	stamps   bool
	seq      uint64
	valid    bool
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	app   *app.App
	theme *styles.Theme
	keys  KeyMap
	log   zerolog.Logger

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	md       *markdown

	bubbles []*bubble
	index   map[int]*bubble

	composing      bool
	listening      bool
	renderMarkdown bool
	showTimestamps bool
	notice         string

	width  int
	height int
	ready  bool
}

// NewModel creates the chat model for a.
func NewModel(a *app.App, opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	mode, err := styles.ParseMode(cfg.UI.Theme)
	if err != nil {
		mode = styles.ModeAuto
	}
	theme := styles.NewTheme(mode)

	ta := textarea.New()
	ta.Placeholder = "Describe your symptoms..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.Spinner),
	)

	return Model{
		app:            a,
		theme:          theme,
		keys:           DefaultKeyMap(),
		log:            opts.Logger.With().Str("component", "tui").Logger(),
		viewport:       viewport.New(0, 0),
		input:          ta,
		spinner:        sp,
		index:          make(map[int]*bubble),
		renderMarkdown: cfg.UI.RenderMarkdown,
		showTimestamps: cfg.UI.ShowTimestamps,
	}
}

// Init shows the greeting and starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	a := m.app
	return tea.Batch(
		textarea.Blink,
		func() tea.Msg {
			a.Greeting()
			return nil
		},
	)
}

// Busy reports whether a reply or upload is in progress.
func (m Model) Busy() bool { return m.composing }

// Input returns the unsent input text.
func (m Model) Input() string { return m.input.Value() }

// Transcript returns the plain text of every bubble, in order.
func (m Model) Transcript() []string {
	out := make([]string, 0, len(m.bubbles))
	for _, b := range m.bubbles {
		out = append(out, b.text)
	}
	return out
}
