// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/medbot-tui/internal/app"
	"github.com/jeranaias/medbot-tui/internal/config"
	"github.com/jeranaias/medbot-tui/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *recordingSender) updates() []BubbleUpdatedMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []BubbleUpdatedMsg
	for _, m := range s.msgs {
		if u, ok := m.(BubbleUpdatedMsg); ok {
			out = append(out, u)
		}
	}
	return out
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.Default()
	cfg.UI.Theme = "dark"
	cfg.UI.RenderMarkdown = false

	a := app.New(NewSink(), app.Options{Config: cfg, Logger: zerolog.Nop()})
	t.Cleanup(a.Close)

	m := NewModel(a, Options{Config: cfg, Logger: zerolog.Nop()})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// =============================================================================
// SINK TESTS
// =============================================================================

// TestSink_AssignsIDsInOrder verifies bubbles are announced in creation order.
func TestSink_AssignsIDsInOrder(t *testing.T) {
	sender := &recordingSender{}
	sink := NewSink()
	sink.Attach(sender)

	sink.UserMessage("I feel dizzy")
	sink.BotMessage()
	sink.SetComposing(true)

	require.Len(t, sender.msgs, 3)
	user := sender.msgs[0].(BubbleAddedMsg)
	bot := sender.msgs[1].(BubbleAddedMsg)
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "I feel dizzy", user.Text)
	assert.Equal(t, RoleBot, bot.Role)
	assert.Equal(t, user.ID+1, bot.ID)
	assert.Equal(t, ComposingMsg{On: true}, sender.msgs[2])
}

// TestSink_CoalescesAndDeliversFinalText verifies a burst of writes is
// thinned out but the last text always arrives.
func TestSink_CoalescesAndDeliversFinalText(t *testing.T) {
	sender := &recordingSender{}
	sink := NewSink()
	sink.Attach(sender)

	w := sink.BotMessage()
	for i := 0; i < 200; i++ {
		w.Append("a")
	}
	want := strings.Repeat("a", 200)

	require.Eventually(t, func() bool {
		ups := sender.updates()
		return len(ups) > 0 && ups[len(ups)-1].Text == want
	}, 2*time.Second, 10*time.Millisecond)

	ups := sender.updates()
	assert.Less(t, len(ups), 200)
	assert.Equal(t, uint64(200), ups[len(ups)-1].Seq)
}

func TestSink_DetachedDropsMessages(t *testing.T) {
	sink := NewSink()
	assert.NotPanics(t, func() {
		sink.UserMessage("hello")
		sink.Alert("notice")
	})
}

// =============================================================================
// MODEL TESTS
// =============================================================================

// TestModel_BubbleUpdatesIgnoreStaleSeq verifies older text never replaces newer text.
func TestModel_BubbleUpdatesIgnoreStaleSeq(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, BubbleAddedMsg{ID: 1, Role: RoleUser, Text: "hi"})
	m, _ = update(t, m, BubbleAddedMsg{ID: 2, Role: RoleBot})
	m, _ = update(t, m, BubbleUpdatedMsg{ID: 2, Seq: 2, Text: "Hello there"})
	m, _ = update(t, m, BubbleUpdatedMsg{ID: 2, Seq: 1, Text: "Hel"})

	assert.Equal(t, []string{"hi", "Hello there"}, m.Transcript())
	assert.Contains(t, m.View(), "Hello there")
}

func TestModel_CtrlCQuitsWhenIdle(t *testing.T) {
	m := newTestModel(t)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

// TestModel_CtrlCCancelsWhenBusy verifies the first Ctrl+C only cancels.
func TestModel_CtrlCCancelsWhenBusy(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, ComposingMsg{On: true})
	require.True(t, m.Busy())

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
}

func TestModel_EnterClearsInput(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, TranscriptMsg{Text: "persistent"})
	m, _ = update(t, m, TranscriptMsg{Text: "cough"})
	assert.Equal(t, "persistent cough", m.Input())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "sends are queued on the app, not run as commands")
	assert.Empty(t, m.Input())
}

func TestModel_EnterIgnoresBlankInput(t *testing.T) {
	m := newTestModel(t)
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_UploadNeedsPath(t *testing.T) {
	m := newTestModel(t)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Nil(t, cmd)
	assert.Equal(t, uploadHint, m.notice)
}

func TestModel_AlertAddsSystemBubble(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, AlertMsg{Text: "No bot reply to speak yet."})

	assert.Equal(t, []string{"No bot reply to speak yet."}, m.Transcript())
	assert.Equal(t, "No bot reply to speak yet.", m.notice)
}

func TestModel_ThemeToggle(t *testing.T) {
	m := newTestModel(t)
	require.Equal(t, styles.ModeDark, m.theme.Mode())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, styles.ModeLight, m.theme.Mode())
}

// TestModel_ConfigReload verifies live settings follow the file.
func TestModel_ConfigReload(t *testing.T) {
	m := newTestModel(t)

	cfg := config.Default()
	cfg.UI.Theme = "light"
	cfg.UI.ShowTimestamps = true
	m, cmd := update(t, m, ConfigChangedMsg{Config: cfg})

	assert.Equal(t, styles.ModeLight, m.theme.Mode())
	assert.True(t, m.renderMarkdown)
	assert.True(t, m.showTimestamps)
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
}

func TestModel_ListeningShownInStatus(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, ListeningMsg{On: true})
	assert.Contains(t, m.View(), "listening")
}
