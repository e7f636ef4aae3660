// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// LOAD TESTS
// =============================================================================

// TestLoad_MissingFileUsesDefaults verifies a fresh install needs no file.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000", cfg.Backend.BaseURL)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 800*time.Millisecond, cfg.Retry.BaseDelay.Duration)
	assert.Equal(t, 6*time.Millisecond, cfg.Chat.TypingDelayStream.Duration)
	assert.Equal(t, 8*time.Millisecond, cfg.Chat.TypingDelayWhole.Duration)
	assert.Equal(t, "auto", cfg.Chat.Stream)
}

// TestLoad_PartialFileKeepsDefaults verifies keys absent from the file keep defaults.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
base_url = "http://medbot.lan:8080"

[chat]
stream = "never"
typing_delay_whole = "0s"
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://medbot.lan:8080", cfg.Backend.BaseURL)
	assert.Equal(t, "never", cfg.Chat.Stream)
	assert.Equal(t, time.Duration(0), cfg.Chat.TypingDelayWhole.Duration)
	assert.Equal(t, 6*time.Millisecond, cfg.Chat.TypingDelayStream.Duration)
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout.Duration)
}

// TestLoad_UnknownKeyRejected verifies typos surface instead of being ignored.
func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\nbase_ulr = \"http://x\"\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.base_ulr")
}

// TestLoad_EnvOverrides verifies MEDBOT_* variables win over the file.
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEDBOT_BASE_URL", "http://override:5000")
	t.Setenv("MEDBOT_STREAM", "always")
	t.Setenv("MEDBOT_THEME", "light")
	t.Setenv("MEDBOT_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://override:5000", cfg.Backend.BaseURL)
	assert.Equal(t, "always", cfg.Chat.Stream)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestSaveTOML_RoundTrip verifies saved files load back identically.
func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Retry.BaseDelay = Duration{250 * time.Millisecond}
	cfg.Voice.RecognizerCmd = "medbot-stt --lang en"

	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.Backend.BaseURL = "127.0.0.1:5000" }, "backend.base_url"},
		{"bad stream", func(c *Config) { c.Chat.Stream = "sometimes" }, "chat.stream"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"negative delay", func(c *Config) { c.Retry.BaseDelay = Duration{-time.Second} }, "retry.base_delay"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}

	assert.NoError(t, Default().Validate())
}

// =============================================================================
// GET/SET TESTS
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("retry.max_attempts", "5"))
	require.NoError(t, cfg.Set("retry.base_delay", "1s"))
	require.NoError(t, cfg.Set("ui.render_markdown", "false"))
	require.NoError(t, cfg.Set("backend.base_url", "http://h:1"))

	v, err := cfg.Get("retry.max_attempts")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = cfg.Get("retry.base_delay")
	require.NoError(t, err)
	assert.Equal(t, "1s", v)

	assert.False(t, cfg.UI.RenderMarkdown)
	assert.Equal(t, "http://h:1", cfg.Backend.BaseURL)

	assert.Error(t, cfg.Set("retry.max_attempts", "many"))
	assert.Error(t, cfg.Set("retry.nope", "1"))
	_, err = cfg.Get("retry.base_delay.seconds")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "backend.base_url")
	assert.Contains(t, keys, "chat.typing_delay_stream")
	assert.Contains(t, keys, "log.file")
	for _, k := range keys {
		_, err := Default().Get(k)
		assert.NoError(t, err, k)
	}
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

// TestWatcher_ReloadsOnWrite verifies a saved file reaches the callback.
func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changed := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changed <- c }, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	cfg := Default()
	cfg.UI.Theme = "light"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-changed:
		assert.Equal(t, "light", got.UI.Theme)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the change")
	}
}
