// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/jeranaias/medbot-tui/internal/app"
	"github.com/jeranaias/medbot-tui/internal/config"
)

// Run shows the chat screen until the user quits or ctx is done. sink must be
// the surface a was created with.
func Run(ctx context.Context, a *app.App, sink *Sink, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(a, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(p)

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, func(cfg *config.Config) {
			p.Send(ConfigChangedMsg{Config: cfg})
		}, opts.Logger)
		if err != nil {
			opts.Logger.Warn().Err(err).Msg("live config reload disabled")
		} else {
			go w.Run(ctx)
		}
	}

	_, err := p.Run()
	sink.Attach(nil)
	a.Close()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
