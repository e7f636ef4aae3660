// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/medbot-tui/internal/client"
	"github.com/jeranaias/medbot-tui/internal/config"
)

func newTrainCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "train <pairs.json>",
		Short: "Teach the bot question/answer pairs",
		Long: `train sends question/answer pairs to the server's knowledge base.

The file holds a JSON array:

  [{"question": "What is a normal resting heart rate?",
    "answer": "For adults, 60 to 100 beats per minute."}]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initLogging(cmd, false); err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "open pairs file")
			}
			defer f.Close()

			pairs, err := client.LoadQAPairs(f)
			if err != nil {
				return errors.Wrap(err, path)
			}
			res, err := o.client().Train(cmd.Context(), pairs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Sent %d pairs (status %q). The knowledge base now holds %d pairs.\n",
				successStyle.Render("✓"), len(pairs), res.Status, res.NewTotalPairs)
			return nil
		},
	}
}
