// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app binds the turn controller, the MedBot client and the voice
// adapters to a front end.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/medbot-tui/internal/client"
	"github.com/jeranaias/medbot-tui/internal/config"
	"github.com/jeranaias/medbot-tui/internal/turn"
	"github.com/jeranaias/medbot-tui/internal/voice"
)

// GreetingText opens every conversation.
const GreetingText = "Hello! I'm AI MedBot - educational only. Describe symptoms, upload a report, " +
	"or train me with QA pairs. I cannot provide diagnoses or prescriptions. " +
	"A medical disclaimer is always included."

// AlertNothingToSpeak is shown when Speak runs before any reply arrived.
const AlertNothingToSpeak = "No bot reply to speak yet."

// Surface is a front end that hosts the conversation.
//
// The turn.Sink methods are called with the controller lock held; see
// turn.Sink.
type Surface interface {
	turn.Sink

	// Alert shows a notice the user has to see.
	Alert(msg string)
	// AppendInput adds a voice transcript to the unsent input.
	AppendInput(transcript string)
	// SetListening shows whether the microphone is live.
	SetListening(on bool)
}

// Options configures an App. Zero values fall back to config defaults.
type Options struct {
	Config      *config.Config
	Client      *client.Client
	Recognizer  voice.Recognizer
	Synthesizer voice.Synthesizer
	SessionID   string
	Logger      zerolog.Logger
	// Sleep replaces the retry backoff wait. Tests use it.
	Sleep turn.SleepFunc
}

// App is one chat session.
type App struct {
	client  *client.Client
	ctrl    *turn.Controller
	surface Surface
	input   *voice.InputAdapter
	output  *voice.OutputAdapter
	log     zerolog.Logger

	mu            sync.Mutex
	micNoticed    bool
	speechNoticed bool
	uploads       sync.WaitGroup

	// Submitted messages, started in order by one worker.
	sendMu      sync.Mutex
	sendQueue   []string
	sendStarted bool
	sendWake    chan struct{}
	sendStop    chan struct{}
	sendDone    chan struct{}
	stopOnce    sync.Once
}

// New creates an App that renders into surface.
func New(surface Surface, opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	c := opts.Client
	if c == nil {
		c = NewClient(cfg, opts.Logger)
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = turn.NewSessionID()
	}

	a := &App{
		client:  c,
		surface: surface,
		log:     opts.Logger.With().Str("session_id", sessionID).Logger(),

		sendWake: make(chan struct{}, 1),
		sendStop: make(chan struct{}),
		sendDone: make(chan struct{}),
	}

	a.ctrl = turn.NewController(c, surface, sessionID).
		WithLogger(a.log).
		WithPolicy(turn.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay.Duration,
		})
	if opts.Sleep != nil {
		a.ctrl.WithSleep(opts.Sleep)
	}
	a.ApplyConfig(cfg)

	a.input = voice.NewInputAdapter(opts.Recognizer, cfg.Voice.Lang, voice.InputEvents{
		OnResult:           surface.AppendInput,
		OnListeningChanged: surface.SetListening,
		OnAlert:            surface.Alert,
	}, a.log)
	a.output = voice.NewOutputAdapter(opts.Synthesizer, a.log)
	return a
}

// NewClient builds the backend client described by cfg.
func NewClient(cfg *config.Config, log zerolog.Logger) *client.Client {
	c := client.New(cfg.Backend.BaseURL).
		WithTimeout(cfg.Backend.Timeout.Duration).
		WithLogger(log)
	if mode, err := client.ParseStreamMode(cfg.Chat.Stream); err == nil {
		c.WithStreamMode(mode)
	}
	return c
}

// ApplyConfig takes the settings that may change while a session is open.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.ctrl.SetTypingDelays(cfg.Chat.TypingDelayStream.Duration, cfg.Chat.TypingDelayWhole.Duration)
}

// Client returns the backend client.
func (a *App) Client() *client.Client { return a.client }

// SessionID identifies this conversation to the backend.
func (a *App) SessionID() string { return a.ctrl.SessionID() }

// Greeting shows the opening bot message.
func (a *App) Greeting() {
	a.surface.BotMessage().Replace(GreetingText)
}

// Send starts a chat turn. Blank text is ignored and yields nil.
func (a *App) Send(text string) *turn.Turn {
	return a.ctrl.StartTurn(text)
}

// Submit queues text to be sent without blocking. Submitted messages start
// their turns in submission order, so a later message always supersedes an
// earlier one. Front ends whose event loop must not wait on the controller
// use it instead of Send.
func (a *App) Submit(text string) {
	a.sendMu.Lock()
	a.sendQueue = append(a.sendQueue, text)
	if !a.sendStarted {
		a.sendStarted = true
		go a.runSends()
	}
	a.sendMu.Unlock()

	select {
	case a.sendWake <- struct{}{}:
	default:
	}
}

func (a *App) runSends() {
	defer close(a.sendDone)
	for {
		select {
		case <-a.sendStop:
			return
		case <-a.sendWake:
		}
		for {
			select {
			case <-a.sendStop:
				return
			default:
			}
			a.sendMu.Lock()
			if len(a.sendQueue) == 0 {
				a.sendMu.Unlock()
				break
			}
			text := a.sendQueue[0]
			a.sendQueue = a.sendQueue[1:]
			a.sendMu.Unlock()

			a.Send(text)
		}
	}
}

// Cancel stops the in-flight turn and reports whether there was one.
func (a *App) Cancel() bool {
	return a.ctrl.Cancel()
}

// Busy reports whether a turn is in flight.
func (a *App) Busy() bool {
	t := a.ctrl.Current()
	return t != nil && !t.Status().Terminal()
}

// LastReply is the most recent successful bot reply.
func (a *App) LastReply() string {
	return a.ctrl.LastReply()
}

// Upload sends the file at path for OCR and shows the result. It is not
// retried and errors end up in the bot bubble.
func (a *App) Upload(ctx context.Context, path string) {
	a.uploads.Add(1)
	defer a.uploads.Done()

	a.surface.UserMessage(fmt.Sprintf("Uploading %q for OCR...", filepath.Base(path)))
	target := a.surface.BotMessage()
	a.surface.SetComposing(true)
	defer a.surface.SetComposing(false)

	text, err := a.client.Upload(ctx, path)
	if err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("upload failed")
		target.Replace("Upload/OCR failed: " + err.Error())
		return
	}
	a.log.Info().Str("path", path).Int("chars", len(text)).Msg("upload complete")
	target.Replace("OCR extracted text:\n\n" + text)
}

// Speak reads the last reply aloud.
func (a *App) Speak(ctx context.Context) {
	reply := a.ctrl.LastReply()
	if reply == "" {
		a.surface.Alert(AlertNothingToSpeak)
		return
	}
	if err := a.output.Speak(ctx, reply); err != nil {
		if errors.Is(err, voice.ErrUnsupported) {
			a.noticeOnce(&a.speechNoticed, voice.NoticeSynthesisUnavailable)
			return
		}
		a.log.Warn().Err(err).Msg("speak failed")
	}
}

// ToggleMic starts or stops listening.
func (a *App) ToggleMic() {
	if err := a.input.Toggle(); err != nil {
		if errors.Is(err, voice.ErrUnsupported) {
			a.noticeOnce(&a.micNoticed, voice.NoticeRecognitionUnavailable)
			return
		}
		a.log.Warn().Err(err).Msg("mic toggle failed")
	}
}

// Listening reports whether the microphone is live.
func (a *App) Listening() bool { return a.input.Listening() }

// Speaking reports whether a reply is being read aloud.
func (a *App) Speaking() bool { return a.output.Speaking() }

// VoicesChanged re-resolves the preferred synthesis voice.
func (a *App) VoicesChanged(ctx context.Context) error {
	return a.output.VoicesChanged(ctx)
}

// Voices is the synthesis voice list seen by the last VoicesChanged.
func (a *App) Voices() []voice.Voice { return a.output.Voices() }

// SelectedVoice is the voice replies are spoken with, or nil for the default.
func (a *App) SelectedVoice() *voice.Voice { return a.output.Selected() }

// Close cancels the in-flight turn silently and stops the voice adapters.
func (a *App) Close() {
	a.stopOnce.Do(func() { close(a.sendStop) })
	a.sendMu.Lock()
	started := a.sendStarted
	a.sendMu.Unlock()
	if started {
		<-a.sendDone
	}

	current := a.ctrl.Current()
	a.ctrl.Close()
	if current != nil {
		<-current.Done()
	}
	a.input.Stop()
	a.input.Wait()
	a.output.Stop()
	a.uploads.Wait()
}

func (a *App) noticeOnce(flag *bool, msg string) {
	a.mu.Lock()
	seen := *flag
	*flag = true
	a.mu.Unlock()
	if !seen {
		a.surface.Alert(msg)
	}
}
