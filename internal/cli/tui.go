// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/spf13/cobra"

	"github.com/jeranaias/medbot-tui/internal/ui/chat"
)

func newTUICommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, o)
		},
	}
}

func runTUI(cmd *cobra.Command, o *rootOptions) error {
	if !IsTTY() {
		return &TTYRequiredError{Operation: "the full-screen chat"}
	}
	if err := o.initLogging(cmd, true); err != nil {
		return err
	}
	path, err := o.resolvedConfigPath()
	if err != nil {
		return err
	}

	sink := chat.NewSink()
	a := o.newApp(sink)
	o.log.Info().Str("session_id", a.SessionID()).Str("backend", a.Client().BaseURL()).Msg("tui started")

	return chat.Run(cmd.Context(), a, sink, chat.Options{
		Config:     o.cfg,
		ConfigPath: path,
		Logger:     o.log,
	})
}
