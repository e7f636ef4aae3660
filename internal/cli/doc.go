// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the medbot command line.
//
// The root command opens the full-screen chat. Subcommands cover the
// line-based chat (chat), one-shot requests (ask, upload, train), setup
// checks (doctor, voices) and the config file (config).
//
// Every command loads ~/.medbot/config.toml first, then applies environment
// variables and the persistent flags on top.
package cli
