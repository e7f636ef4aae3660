// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for medbot.
//
// Configuration is TOML, with built-in defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - Duration: time.Duration stored as text ("800ms")
//   - Watcher: Reloads the file on change for live settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MEDBOT_*)
//   - ~/.medbot/config.toml (or --config)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	c := client.New(cfg.Backend.BaseURL)
package config
