// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/medbot-tui/internal/voice"
)

func newVoicesCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List speech voices and show which one replies use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initLogging(cmd, false); err != nil {
				return err
			}
			a := o.newApp(nopSurface{})
			defer a.Close()

			// The same lookup the speak action uses, so the marked voice is
			// the one replies are read with.
			if err := a.VoicesChanged(cmd.Context()); err != nil {
				if errors.Is(err, voice.ErrUnsupported) {
					return errors.New(voice.NoticeSynthesisUnavailable)
				}
				return err
			}
			renderVoices(cmd.OutOrStdout(), a.Voices(), a.SelectedVoice())
			return nil
		},
	}
}

// renderVoices prints voices as a table, marking the selected one.
func renderVoices(w io.Writer, voices []voice.Voice, selected *voice.Voice) {
	data := make([][]string, 0, len(voices))
	for _, v := range voices {
		mark := ""
		if selected != nil && v == *selected {
			mark = "*"
		}
		data = append(data, []string{mark, v.Name, v.Lang, v.ID})
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"", "Name", "Lang", "ID"})
	table.Bulk(data)
	table.Render()
}
