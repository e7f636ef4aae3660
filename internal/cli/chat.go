// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/medbot-tui/internal/app"
	"github.com/jeranaias/medbot-tui/internal/config"
	"github.com/jeranaias/medbot-tui/internal/turn"
	"github.com/jeranaias/medbot-tui/internal/util"
)

func newChatCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a line-based chat session",
		Long: `chat is a line-based conversation with MedBot.

Commands:
  /help            Show available commands
  /upload <path>   Send a report image for OCR
  /speak           Read the last reply aloud
  /mic             Start or stop voice input
  /cancel          Cancel the reply in progress
  /clear           Clear the screen
  /status          Show session state
  /quit            Exit chat

Ctrl+C cancels a reply in progress. Ctrl+D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initLogging(cmd, true); err != nil {
				return err
			}
			return runChat(cmd.Context(), o, cmd.OutOrStdout())
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line, prefilled with suggestion when it is not empty.
func (c *ChatCLI) ReadInput(prompt, suggestion string) (string, error) {
	var input string
	var err error
	if suggestion != "" {
		input, err = c.line.PromptWithSuggestion(prompt, suggestion, -1)
	} else {
		input, err = c.line.Prompt(prompt)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (c *ChatCLI) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession is one REPL conversation.
type chatSession struct {
	app  *app.App
	sink *replSink
	out  io.Writer

	mu       sync.Mutex
	opCancel context.CancelFunc
}

func newChatSession(o *rootOptions, out io.Writer) *chatSession {
	// Streamed text is printed as it arrives, so the typing replay would
	// only delay the next prompt.
	o.cfg.Chat.TypingDelayStream.Duration = 0
	o.cfg.Chat.TypingDelayWhole.Duration = 0

	sink := newReplSink(out)
	return &chatSession{
		app:  o.newApp(sink),
		sink: sink,
		out:  out,
	}
}

func runChat(ctx context.Context, o *rootOptions, out io.Writer) error {
	s := newChatSession(o, out)
	defer s.app.Close()

	input := NewChatCLI()
	defer input.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go func() {
		for range sigChan {
			s.interrupt()
		}
	}()

	printWelcome(out, s.app)
	s.app.Greeting()
	s.sink.endBubble()

	for {
		// liner rejects prompts that carry escape sequences.
		line, err := input.ReadInput("you> ", s.sink.takeTranscript())
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or a closed stdin.
			fmt.Fprintln(out)
			return nil
		}
		if s.handleInput(ctx, line) {
			return nil
		}
	}
}

// interrupt cancels whatever is in progress.
func (s *chatSession) interrupt() {
	if s.app.Cancel() {
		return
	}
	s.mu.Lock()
	cancel := s.opCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// handleInput runs one line of input and reports whether to exit.
func (s *chatSession) handleInput(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if strings.HasPrefix(input, "/") {
		return s.handleSlashCommand(ctx, input)
	}
	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return true
	}

	s.sink.expectEcho(input)
	t := s.app.Send(input)
	if t != nil {
		waitTurn(ctx, s.app, t)
		s.sink.endBubble()
	}
	return false
}

func (s *chatSession) handleSlashCommand(ctx context.Context, input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "/help", "/h":
		printHelp(s.out)

	case "/upload", "/u":
		if arg == "" {
			fmt.Fprintln(s.out, warningStyle.Render("Usage: /upload <path>"))
			return false
		}
		path, err := config.ExpandPath(arg)
		if err != nil {
			fmt.Fprintln(s.out, errorStyle.Render("[Error]"), err)
			return false
		}
		opCtx, cancel := context.WithCancel(ctx)
		s.setOpCancel(cancel)
		s.app.Upload(opCtx, path)
		s.setOpCancel(nil)
		cancel()
		s.sink.endBubble()

	case "/speak":
		s.app.Speak(ctx)

	case "/mic":
		s.app.ToggleMic()

	case "/cancel":
		if !s.app.Cancel() {
			fmt.Fprintln(s.out, infoStyle.Render("Nothing to cancel."))
		}

	case "/clear", "/c":
		if isTerminalWriter(s.out) {
			fmt.Fprint(s.out, "\033[H\033[2J")
		}

	case "/status", "/s":
		printStatus(s.out, s.app)

	case "/quit", "/q", "/exit":
		return true

	default:
		fmt.Fprintf(s.out, "%s unknown command %s (try /help)\n", warningStyle.Render("[!]"), cmd)
	}
	return false
}

func (s *chatSession) setOpCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.opCancel = cancel
	s.mu.Unlock()
}

// =============================================================================
// OUTPUT
// =============================================================================

func printWelcome(w io.Writer, a *app.App) {
	fmt.Fprintln(w, welcomeStyle.Render("AI MedBot"))
	fmt.Fprintln(w, infoStyle.Render("Backend: "+a.Client().BaseURL()))
	fmt.Fprintln(w, infoStyle.Render("Type /help for commands. Ctrl+C cancels a reply, Ctrl+D exits."))
	fmt.Fprintln(w)
}

func printHelp(w io.Writer) {
	cmds := [][2]string{
		{"/help", "Show available commands"},
		{"/upload <path>", "Send a report image for OCR"},
		{"/speak", "Read the last reply aloud"},
		{"/mic", "Start or stop voice input"},
		{"/cancel", "Cancel the reply in progress"},
		{"/clear", "Clear the screen"},
		{"/status", "Show session state"},
		{"/quit", "Exit chat"},
	}
	for _, c := range cmds {
		fmt.Fprintf(w, "  %s %s\n", commandStyle.Render(fmt.Sprintf("%-16s", c[0])), infoStyle.Render(c[1]))
	}
}

func printStatus(w io.Writer, a *app.App) {
	last := a.LastReply()
	if last == "" {
		last = "(none)"
	}
	fmt.Fprintf(w, "  %-10s %s\n", "session", a.SessionID())
	fmt.Fprintf(w, "  %-10s %s\n", "backend", a.Client().BaseURL())
	fmt.Fprintf(w, "  %-10s %t\n", "busy", a.Busy())
	fmt.Fprintf(w, "  %-10s %t\n", "listening", a.Listening())
	fmt.Fprintf(w, "  %-10s %t\n", "speaking", a.Speaking())
	fmt.Fprintf(w, "  %-10s %s\n", "last reply", util.TruncateWidth(util.FirstLine(last), 60))
}

// =============================================================================
// REPL SINK
// =============================================================================

// replSink prints the conversation as plain lines.
type replSink struct {
	out io.Writer

	mu         sync.Mutex
	echo       string
	transcript string
	open       bool
}

func newReplSink(out io.Writer) *replSink {
	return &replSink{out: out}
}

// expectEcho suppresses the user bubble for a line the terminal already shows.
func (s *replSink) expectEcho(text string) {
	s.mu.Lock()
	s.echo = text
	s.mu.Unlock()
}

func (s *replSink) UserMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == s.echo {
		s.echo = ""
		return
	}
	fmt.Fprintln(s.out, promptStyle.Render("you> ")+text)
}

func (s *replSink) BotMessage() turn.RenderTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	fmt.Fprint(s.out, botStyle.Render("medbot> "))
	return &replBubble{sink: s}
}

func (s *replSink) SetComposing(bool) {}

func (s *replSink) Alert(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, warningStyle.Render("[!] "+msg))
}

// AppendInput keeps the transcript until the next prompt.
func (s *replSink) AppendInput(transcript string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript == "" {
		s.transcript = transcript
	} else {
		s.transcript += " " + transcript
	}
	fmt.Fprintln(s.out, infoStyle.Render("heard: "+transcript))
}

func (s *replSink) SetListening(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		fmt.Fprintln(s.out, infoStyle.Render("[mic on]"))
	} else {
		fmt.Fprintln(s.out, infoStyle.Render("[mic off]"))
	}
}

// takeTranscript returns and clears the pending voice transcript.
func (s *replSink) takeTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.transcript
	s.transcript = ""
	return t
}

// endBubble finishes the current bot line.
func (s *replSink) endBubble() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		fmt.Fprintln(s.out)
		s.open = false
	}
}

// replBubble prints only what is new. Text that grows is printed as a
// suffix. Text that shrinks back toward what is shown prints nothing, and
// anything else starts a fresh line.
type replBubble struct {
	sink  *replSink
	shown string
	text  strings.Builder
}

func (b *replBubble) Replace(text string) {
	b.sink.mu.Lock()
	defer b.sink.mu.Unlock()
	b.text.Reset()
	b.text.WriteString(text)
	b.printLocked()
}

func (b *replBubble) Append(text string) {
	b.sink.mu.Lock()
	defer b.sink.mu.Unlock()
	b.text.WriteString(text)
	b.printLocked()
}

func (b *replBubble) printLocked() {
	cur := b.text.String()
	switch {
	case strings.HasPrefix(cur, b.shown):
		fmt.Fprint(b.sink.out, cur[len(b.shown):])
		b.shown = cur
	case strings.HasPrefix(b.shown, cur):
	default:
		fmt.Fprint(b.sink.out, "\n"+cur)
		b.shown = cur
	}
}
