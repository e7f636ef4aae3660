// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newUploadCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "upload <file>",
		Short:   "Send a report image for OCR and print the extracted text",
		Example: `  medbot upload ~/Downloads/blood-panel.png`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initLogging(cmd, false); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			text, err := o.client().Upload(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
