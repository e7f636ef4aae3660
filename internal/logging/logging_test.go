// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"INFO":     zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"disabled": zerolog.Disabled,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestInit_StderrAndFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var stderr bytes.Buffer
	file := filepath.Join(t.TempDir(), "medbot.log")

	logger, err := Init(Options{Level: "warn", File: file, Stderr: &stderr})
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("turn_id", "t1").Msg("chat attempt failed")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "chat attempt failed")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "turn_id=t1")
}

func TestInit_QuietWithoutFileDiscards(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var stderr bytes.Buffer
	logger, err := Init(Options{Level: "debug", Quiet: true, Stderr: &stderr})
	require.NoError(t, err)

	logger.Error().Msg("nowhere")
	assert.Empty(t, stderr.String())
}
