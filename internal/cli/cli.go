// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/medbot-tui/internal/app"
	"github.com/jeranaias/medbot-tui/internal/client"
	"github.com/jeranaias/medbot-tui/internal/config"
	"github.com/jeranaias/medbot-tui/internal/logging"
	"github.com/jeranaias/medbot-tui/internal/turn"
	"github.com/jeranaias/medbot-tui/internal/voice"
)

// BuildInfo is stamped in by the linker.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// rootOptions holds the persistent flags and what they resolve to.
type rootOptions struct {
	baseURL    string
	configPath string
	logLevel   string
	logFile    string

	cfg *config.Config
	log zerolog.Logger
}

// Execute runs the medbot command line.
func Execute(info BuildInfo) error {
	return NewRootCommand(info).Execute()
}

// NewRootCommand builds the medbot command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	o := &rootOptions{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "medbot",
		Short: "Terminal client for the AI MedBot educational assistant",
		Long: `medbot talks to an AI MedBot server. It is an educational tool only:
it cannot diagnose or prescribe, and every reply carries a medical disclaimer.

Run without a subcommand to open the full-screen chat.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, o)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.baseURL, "base-url", "", "MedBot server URL (overrides config)")
	flags.StringVar(&o.configPath, "config", "", "config file (default ~/.medbot/config.toml)")
	flags.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&o.logFile, "log-file", "", "write logs to this file")

	root.AddCommand(
		newTUICommand(o),
		newChatCommand(o),
		newAskCommand(o),
		newUploadCommand(o),
		newTrainCommand(o),
		newDoctorCommand(o),
		newVoicesCommand(o),
		newConfigCommand(o),
		newVersionCommand(info),
	)
	return root
}

// resolvedConfigPath is the file flags and defaults point at.
func (o *rootOptions) resolvedConfigPath() (string, error) {
	if o.configPath != "" {
		return config.ExpandPath(o.configPath)
	}
	return config.ConfigPath()
}

// loadConfig reads the config file, then applies flag overrides.
func (o *rootOptions) loadConfig() error {
	path, err := o.resolvedConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if o.baseURL != "" {
		cfg.Backend.BaseURL = o.baseURL
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// initLogging starts zerolog. Interactive screens keep the console clean
// and log to a file only.
func (o *rootOptions) initLogging(cmd *cobra.Command, interactive bool) error {
	file := o.cfg.Log.File
	if interactive && file == "" {
		if dir, err := config.ConfigDir(); err == nil {
			file = filepath.Join(dir, "medbot.log")
		}
	}
	log, err := logging.Init(logging.Options{
		Level:  o.cfg.Log.Level,
		File:   file,
		Quiet:  interactive,
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return errors.Wrap(err, "init logging")
	}
	o.log = log
	return nil
}

func (o *rootOptions) client() *client.Client {
	return app.NewClient(o.cfg, o.log)
}

// newApp wires an App for surface from the loaded configuration.
func (o *rootOptions) newApp(surface app.Surface) *app.App {
	return app.New(surface, app.Options{
		Config:      o.cfg,
		Client:      o.client(),
		Recognizer:  o.recognizer(),
		Synthesizer: o.synthesizer(),
		Logger:      o.log,
	})
}

// recognizer returns nil when voice input is not configured.
func (o *rootOptions) recognizer() voice.Recognizer {
	if o.cfg.Voice.RecognizerCmd == "" {
		return nil
	}
	return voice.NewExecRecognizer(o.cfg.Voice.RecognizerCmd)
}

// synthesizer returns nil when voice output is turned off.
func (o *rootOptions) synthesizer() voice.Synthesizer {
	if o.cfg.Voice.SynthesizerCmd == "" {
		return nil
	}
	return voice.NewExecSynthesizer(o.cfg.Voice.SynthesizerCmd)
}

// nopSurface discards everything. One-shot commands read the turn instead.
type nopSurface struct{}

func (nopSurface) UserMessage(string) {}
func (nopSurface) BotMessage() turn.RenderTarget { return nopTarget{} }
func (nopSurface) SetComposing(bool) {}
func (nopSurface) Alert(string) {}
func (nopSurface) AppendInput(string) {}
func (nopSurface) SetListening(bool) {}

type nopTarget struct{}

func (nopTarget) Replace(string) {}
func (nopTarget) Append(string) {}

// waitTurn blocks until t ends, cancelling it if ctx is done first.
func waitTurn(ctx context.Context, a *app.App, t *turn.Turn) {
	select {
	case <-t.Done():
	case <-ctx.Done():
		a.Cancel()
		<-t.Done()
	}
}
