// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnsupported means the platform has no working speech capability.
var ErrUnsupported = errors.New("speech capability not available")

// Notices shown once when a capability is missing.
const (
	NoticeRecognitionUnavailable = "Speech recognition not available."
	NoticeSynthesisUnavailable   = "Speech synthesis not available."
)

// ErrorKind classifies recognition failures.
type ErrorKind int

const (
	ErrorOther ErrorKind = iota
	ErrorNoSpeech
	ErrorNotAllowed
	ErrorUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNoSpeech:
		return "no-speech"
	case ErrorNotAllowed:
		return "not-allowed"
	case ErrorUnsupported:
		return "unsupported"
	default:
		return "other"
	}
}

// RecognitionError is returned by a Recognizer for a failed listen.
type RecognitionError struct {
	Kind ErrorKind
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition failed: %s", e.Kind)
	}
	return fmt.Sprintf("recognition failed: %s: %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Recognizer listens once and returns the final transcript.
// A cancelled ctx ends listening and returns ctx.Err().
type Recognizer interface {
	Available() error
	Recognize(ctx context.Context, lang string) (string, error)
}

// Voice is one synthesis voice.
type Voice struct {
	ID   string
	Name string
	Lang string
}

// Utterance is one piece of text to speak.
type Utterance struct {
	Text  string
	Voice *Voice
	Lang  string
	Rate  float64
	Pitch float64
}

// Synthesizer speaks utterances. Speak blocks until playback ends or ctx is done.
type Synthesizer interface {
	Available() error
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, u Utterance) error
}
