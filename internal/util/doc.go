// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the CLI and TUI.
//
// # Key Functions
//
//   - TruncateWidth: display-width truncation with an ellipsis
//   - FirstLine: the first line of a multi-line message
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	status := util.TruncateWidth(util.FirstLine(reply), 60)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
