// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Utterance defaults.
const (
	DefaultLang  = "en-US"
	DefaultRate  = 1.0
	DefaultPitch = 1.0
)

// preferredKeywords mark voices that read replies most naturally.
var preferredKeywords = []string{
	"female", "woman", "zira", "samantha", "alloy", "voice",
	"serena", "native", "anna", "victoria", "google",
}

var englishLang = regexp.MustCompile(`(?i)en(-|_)?`)

// SelectVoice picks the voice used for replies. It prefers an English voice
// whose name carries a preferred keyword, then any preferred voice, then any
// English voice, then the first one. It returns nil for an empty list.
func SelectVoice(voices []Voice) *Voice {
	if len(voices) == 0 {
		return nil
	}
	for i := range voices {
		if englishLang.MatchString(voices[i].Lang) && hasKeyword(voices[i].Name) {
			return &voices[i]
		}
	}
	for i := range voices {
		if hasKeyword(voices[i].Name) {
			return &voices[i]
		}
	}
	for i := range voices {
		if strings.HasPrefix(strings.ToLower(voices[i].Lang), "en") {
			return &voices[i]
		}
	}
	return &voices[0]
}

func hasKeyword(name string) bool {
	name = strings.ToLower(name)
	for _, kw := range preferredKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// OutputAdapter speaks bot replies, one utterance at a time.
type OutputAdapter struct {
	synth Synthesizer
	log   zerolog.Logger

	// speakMu serializes Speak so stop-then-start is one step.
	speakMu sync.Mutex

	mu       sync.Mutex
	voices   []Voice
	selected *Voice
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewOutputAdapter wraps synth.
func NewOutputAdapter(synth Synthesizer, log zerolog.Logger) *OutputAdapter {
	return &OutputAdapter{
		synth: synth,
		log:   log.With().Str("component", "voice-output").Logger(),
	}
}

// Available reports whether synthesis can work at all.
func (o *OutputAdapter) Available() error {
	if o.synth == nil {
		return ErrUnsupported
	}
	return o.synth.Available()
}

// VoicesChanged re-runs voice selection against the current voice list.
func (o *OutputAdapter) VoicesChanged(ctx context.Context) error {
	if err := o.Available(); err != nil {
		return err
	}
	voices, err := o.synth.Voices(ctx)
	if err != nil {
		return errors.Wrap(err, "list voices")
	}
	v := SelectVoice(voices)

	o.mu.Lock()
	o.voices = voices
	o.selected = v
	o.mu.Unlock()

	if v != nil {
		o.log.Debug().Str("voice", v.Name).Str("lang", v.Lang).Msg("voice selected")
	}
	return nil
}

// Voices returns the list seen by the last VoicesChanged.
func (o *OutputAdapter) Voices() []Voice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Voice(nil), o.voices...)
}

// Selected returns the chosen voice, or nil when none is available yet.
func (o *OutputAdapter) Selected() *Voice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

// Speak cancels any current utterance and starts speaking text.
// It returns once playback has started.
func (o *OutputAdapter) Speak(ctx context.Context, text string) error {
	if err := o.Available(); err != nil {
		return err
	}

	o.speakMu.Lock()
	defer o.speakMu.Unlock()

	// Voice lists can arrive late, so keep looking until one is chosen.
	if o.Selected() == nil {
		if err := o.VoicesChanged(ctx); err != nil {
			o.log.Warn().Err(err).Msg("voice lookup failed, using default voice")
		}
	}

	o.Stop()

	o.mu.Lock()
	defer o.mu.Unlock()
	u := Utterance{
		Text:  text,
		Voice: o.selected,
		Lang:  DefaultLang,
		Rate:  DefaultRate,
		Pitch: DefaultPitch,
	}
	speakCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done

	go func() {
		defer close(done)
		if err := o.synth.Speak(speakCtx, u); err != nil && speakCtx.Err() == nil {
			o.log.Warn().Err(err).Msg("speech synthesis failed")
		}
	}()
	return nil
}

// Speaking reports whether an utterance is still playing.
func (o *OutputAdapter) Speaking() bool {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Stop cancels the current utterance and waits for it to end.
func (o *OutputAdapter) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Wait blocks until the current utterance finishes on its own.
func (o *OutputAdapter) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}
