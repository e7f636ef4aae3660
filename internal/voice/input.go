// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Alerts shown by the input adapter.
const (
	AlertNoSpeech   = "I couldn't hear anything. Please check your microphone and try again."
	AlertNotAllowed = "Microphone access denied. Allow microphone permission and try again."
)

const (
	// MaxNoSpeechRetries is how often listening restarts silently after hearing nothing.
	MaxNoSpeechRetries = 2

	noSpeechBaseDelay = 500 * time.Millisecond
	noSpeechStepDelay = 200 * time.Millisecond
)

// NoSpeechDelay is the pause before the given no-speech retry (1-based).
func NoSpeechDelay(retry int) time.Duration {
	return noSpeechBaseDelay + time.Duration(retry)*noSpeechStepDelay
}

// InputEvents receives recognition events. Nil callbacks are skipped.
// Callbacks run on the adapter's goroutines.
type InputEvents struct {
	OnResult           func(text string)
	OnError            func(kind ErrorKind)
	OnListeningChanged func(listening bool)
	OnAlert            func(msg string)
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) *time.Timer

// InputAdapter turns a one-shot Recognizer into a start/stop microphone.
type InputAdapter struct {
	rec    Recognizer
	lang   string
	events InputEvents
	log    zerolog.Logger
	after  AfterFunc

	mu        sync.Mutex
	listening bool
	retries   int
	cancel    context.CancelFunc
	timer     *time.Timer
	// gen invalidates results from a session that was stopped.
	gen int
	wg  sync.WaitGroup
}

// NewInputAdapter wraps rec. lang is passed to every recognition.
func NewInputAdapter(rec Recognizer, lang string, events InputEvents, log zerolog.Logger) *InputAdapter {
	return &InputAdapter{
		rec:    rec,
		lang:   lang,
		events: events,
		log:    log.With().Str("component", "voice-input").Logger(),
		after:  time.AfterFunc,
	}
}

// WithAfterFunc replaces the retry scheduler. Call before Start.
func (a *InputAdapter) WithAfterFunc(fn AfterFunc) *InputAdapter {
	a.after = fn
	return a
}

// Available reports whether recognition can work at all.
func (a *InputAdapter) Available() error {
	if a.rec == nil {
		return ErrUnsupported
	}
	return a.rec.Available()
}

// Listening reports whether a recognition is in progress.
func (a *InputAdapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// Start begins listening. It resets the no-speech counter.
func (a *InputAdapter) Start() error {
	if err := a.Available(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listening {
		return nil
	}
	a.retries = 0
	a.startLocked()
	return nil
}

// Stop ends listening and drops any pending retry.
func (a *InputAdapter) Stop() {
	a.mu.Lock()
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	wasListening := a.listening
	a.listening = false
	a.mu.Unlock()

	if wasListening {
		a.emitListening(false)
	}
}

// Toggle starts listening when idle and stops it otherwise.
func (a *InputAdapter) Toggle() error {
	if a.Listening() {
		a.Stop()
		return nil
	}
	return a.Start()
}

// Wait blocks until every recognition goroutine has returned.
func (a *InputAdapter) Wait() {
	a.wg.Wait()
}

func (a *InputAdapter) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.listening = true
	gen := a.gen

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.emitListening(true)
		text, err := a.rec.Recognize(ctx, a.lang)
		cancel()
		a.finish(gen, text, err)
	}()
}

func (a *InputAdapter) finish(gen int, text string, err error) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.listening = false
	a.cancel = nil

	if err == nil {
		a.retries = 0
		a.mu.Unlock()
		a.emitListening(false)
		if a.events.OnResult != nil {
			a.events.OnResult(text)
		}
		return
	}

	kind := KindOf(err)
	var alert string
	switch kind {
	case ErrorNoSpeech:
		a.retries++
		if a.retries <= MaxNoSpeechRetries {
			delay := NoSpeechDelay(a.retries)
			a.log.Warn().Int("retry", a.retries).Dur("delay", delay).Msg("no speech detected, retrying")
			a.timer = a.after(delay, func() { a.retry(gen) })
		} else {
			alert = AlertNoSpeech
			a.retries = 0
		}
	case ErrorNotAllowed:
		alert = AlertNotAllowed
	default:
		a.log.Warn().Err(err).Msg("speech recognition error")
	}
	a.mu.Unlock()

	a.emitListening(false)
	if a.events.OnError != nil {
		a.events.OnError(kind)
	}
	if alert != "" && a.events.OnAlert != nil {
		a.events.OnAlert(alert)
	}
}

func (a *InputAdapter) retry(gen int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || a.listening {
		return
	}
	a.timer = nil
	a.startLocked()
}

func (a *InputAdapter) emitListening(on bool) {
	if a.events.OnListeningChanged != nil {
		a.events.OnListeningChanged(on)
	}
}

// AppendTranscript adds transcript to unsent input, separated by one space.
func AppendTranscript(existing, transcript string) string {
	if existing == "" {
		return transcript
	}
	return existing + " " + transcript
}

// KindOf extracts the recognition error kind from err.
func KindOf(err error) ErrorKind {
	var recErr *RecognitionError
	if errors.As(err, &recErr) {
		return recErr.Kind
	}
	if errors.Is(err, ErrUnsupported) {
		return ErrorUnsupported
	}
	return ErrorOther
}
