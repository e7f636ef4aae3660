// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/medbot-tui/internal/turn"
)

// UpdateInterval is the shortest gap between two redraws of one bubble.
// Writes in between are coalesced; the latest text is always delivered.
const UpdateInterval = 33 * time.Millisecond

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink turns conversation writes into program messages. It implements
// app.Surface and may be called from any goroutine.
type Sink struct {
	interval time.Duration

	mu     sync.Mutex
	sender Sender
	nextID int
}

// NewSink creates a sink. Attach a program before it runs.
func NewSink() *Sink {
	return &Sink{interval: UpdateInterval}
}

// Attach routes messages to sender. Attach(nil) drops them.
func (s *Sink) Attach(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

func (s *Sink) send(msg tea.Msg) {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()
	if sender != nil {
		sender.Send(msg)
	}
}

func (s *Sink) add(role Role, text string) int {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()
	s.send(BubbleAddedMsg{ID: id, Role: role, Text: text, At: time.Now()})
	return id
}

// UserMessage adds a user bubble.
func (s *Sink) UserMessage(text string) {
	s.add(RoleUser, text)
}

// BotMessage adds an empty bot bubble and returns its writer.
func (s *Sink) BotMessage() turn.RenderTarget {
	id := s.add(RoleBot, "")
	return &bubbleWriter{
		sink:    s,
		id:      id,
		limiter: rate.NewLimiter(rate.Every(s.interval), 1),
	}
}

// SetComposing shows or hides the composing indicator.
func (s *Sink) SetComposing(on bool) {
	s.send(ComposingMsg{On: on})
}

// Alert shows msg as a system bubble.
func (s *Sink) Alert(msg string) {
	s.send(AlertMsg{Text: msg})
}

// AppendInput adds a transcript to the input box.
func (s *Sink) AppendInput(transcript string) {
	s.send(TranscriptMsg{Text: transcript})
}

// SetListening shows the microphone state.
func (s *Sink) SetListening(on bool) {
	s.send(ListeningMsg{On: on})
}

// bubbleWriter is the render target for one bot bubble.
type bubbleWriter struct {
	sink    *Sink
	id      int
	limiter *rate.Limiter

	mu      sync.Mutex
	text    strings.Builder
	seq     uint64
	pending bool
}

func (w *bubbleWriter) Replace(text string) {
	w.mu.Lock()
	w.text.Reset()
	w.text.WriteString(text)
	w.publishLocked()
}

func (w *bubbleWriter) Append(text string) {
	w.mu.Lock()
	w.text.WriteString(text)
	w.publishLocked()
}

// publishLocked sends the current text now if the limiter allows, or
// schedules one trailing send. It releases w.mu.
func (w *bubbleWriter) publishLocked() {
	w.seq++
	if w.pending {
		w.mu.Unlock()
		return
	}
	if w.limiter.Allow() {
		msg := w.snapshotLocked()
		w.mu.Unlock()
		w.sink.send(msg)
		return
	}
	w.pending = true
	delay := w.limiter.Reserve().Delay()
	w.mu.Unlock()
	time.AfterFunc(delay, w.flush)
}

func (w *bubbleWriter) flush() {
	w.mu.Lock()
	w.pending = false
	msg := w.snapshotLocked()
	w.mu.Unlock()
	w.sink.send(msg)
}

func (w *bubbleWriter) snapshotLocked() BubbleUpdatedMsg {
	return BubbleUpdatedMsg{ID: w.id, Seq: w.seq, Text: w.text.String()}
}
