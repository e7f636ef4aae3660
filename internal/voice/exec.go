// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bufio"
	"bytes"
	"context"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultSynthesizerCmd is the TTS program used when none is configured.
const DefaultSynthesizerCmd = "espeak-ng"

// Recognizer exit codes.
const (
	exitNoSpeech   = 2
	exitNotAllowed = 3
)

// espeak-ng defaults that Rate and Pitch of 1 map onto.
const (
	espeakWordsPerMinute = 175
	espeakPitch          = 50
)

// =============================================================================
// SYNTHESIS
// =============================================================================

// ExecSynthesizer speaks through an espeak-compatible command.
type ExecSynthesizer struct {
	command string
	args    []string
}

// NewExecSynthesizer parses a command line such as "espeak-ng" or
// "espeak-ng -a 120". An empty line selects espeak-ng.
func NewExecSynthesizer(cmdline string) *ExecSynthesizer {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		fields = []string{DefaultSynthesizerCmd}
	}
	return &ExecSynthesizer{command: fields[0], args: fields[1:]}
}

// Available checks that the command is installed.
func (s *ExecSynthesizer) Available() error {
	return lookPath(s.command)
}

// Voices lists voices from the command's --voices table.
func (s *ExecSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	if err := s.Available(); err != nil {
		return nil, err
	}
	args := append(append([]string{}, s.args...), "--voices")
	out, err := exec.CommandContext(ctx, s.command, args...).Output()
	if err != nil {
		return nil, errors.Wrapf(err, "%s --voices", s.command)
	}
	return ParseVoices(out), nil
}

// Speak runs the command for u and waits for it. Cancelling ctx kills it.
func (s *ExecSynthesizer) Speak(ctx context.Context, u Utterance) error {
	if err := s.Available(); err != nil {
		return err
	}
	args := append([]string{}, s.args...)
	switch {
	case u.Voice != nil && u.Voice.ID != "":
		args = append(args, "-v", u.Voice.ID)
	case u.Lang != "":
		args = append(args, "-v", strings.ToLower(u.Lang))
	}
	if u.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(int(math.Round(u.Rate*espeakWordsPerMinute))))
	}
	if u.Pitch > 0 {
		args = append(args, "-p", strconv.Itoa(int(math.Round(u.Pitch*espeakPitch))))
	}
	args = append(args, u.Text)

	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(err, "%s: %s", s.command, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ParseVoices reads an espeak-style voice table:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US
func ParseVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		voices = append(voices, Voice{
			ID:   fields[1],
			Lang: fields[1],
			Name: strings.ReplaceAll(fields[3], "_", " "),
		})
	}
	return voices
}

// =============================================================================
// RECOGNITION
// =============================================================================

// ExecRecognizer runs an external speech-to-text command once per listen.
// The command prints one transcript line. It exits 2 when it heard nothing
// and 3 when the microphone is not accessible.
type ExecRecognizer struct {
	command string
	args    []string
}

// NewExecRecognizer parses a command line. An empty line leaves the
// recognizer unavailable.
func NewExecRecognizer(cmdline string) *ExecRecognizer {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return &ExecRecognizer{}
	}
	return &ExecRecognizer{command: fields[0], args: fields[1:]}
}

// Available checks that a command is configured and installed.
func (r *ExecRecognizer) Available() error {
	if r.command == "" {
		return ErrUnsupported
	}
	return lookPath(r.command)
}

// Recognize runs the command with MEDBOT_LANG set to lang.
func (r *ExecRecognizer) Recognize(ctx context.Context, lang string) (string, error) {
	if err := r.Available(); err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Env = append(os.Environ(), "MEDBOT_LANG="+lang)
	out, err := cmd.Output()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			switch exitErr.ExitCode() {
			case exitNoSpeech:
				return "", &RecognitionError{Kind: ErrorNoSpeech}
			case exitNotAllowed:
				return "", &RecognitionError{Kind: ErrorNotAllowed}
			}
		}
		return "", &RecognitionError{Kind: ErrorOther, Err: err}
	}

	text := strings.TrimSpace(firstLine(string(out)))
	if text == "" {
		return "", &RecognitionError{Kind: ErrorNoSpeech}
	}
	return text, nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\r\n")
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func lookPath(command string) error {
	if _, err := exec.LookPath(command); err != nil {
		return errors.Wrapf(ErrUnsupported, "%s not found", command)
	}
	return nil
}
