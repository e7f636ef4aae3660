// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/medbot-tui/internal/turn"
)

func newAskCommand(o *rootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Example: `  medbot ask "What can cause a persistent dry cough?"
  medbot ask --raw "Is 38.5C a fever?" > reply.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initLogging(cmd, false); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			// Replay pacing only matters on screen.
			o.cfg.Chat.TypingDelayStream.Duration = 0
			o.cfg.Chat.TypingDelayWhole.Duration = 0

			a := o.newApp(nopSurface{})
			defer a.Close()

			t := a.Send(strings.Join(args, " "))
			if t == nil {
				return errors.New("message is empty")
			}
			waitTurn(ctx, a, t)

			out := cmd.OutOrStdout()
			switch t.Status() {
			case turn.Succeeded:
				reply := t.BotText()
				if !raw && o.cfg.UI.RenderMarkdown && isTerminalWriter(out) {
					reply = renderMarkdown(reply, GetTerminalWidth())
				}
				fmt.Fprintln(out, strings.TrimRight(reply, "\n"))
				return nil
			case turn.Cancelled:
				fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render(t.BotText()))
				return errors.New("request cancelled")
			default:
				return errors.New(t.BotText())
			}
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}

// renderMarkdown renders content for a terminal, or returns it unchanged
// when rendering fails.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
