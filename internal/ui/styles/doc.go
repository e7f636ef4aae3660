// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the medbot TUI.

Colors are Lip Gloss AdaptiveColor values, so each one has a light and a
dark variant. Which variant renders is decided by the Theme: "auto" asks the
terminal via termenv, while "dark" and "light" force one.

# Usage

	theme := styles.NewTheme(styles.ModeAuto)
	fmt.Println(theme.BotBubble.Render("Hello"))

	theme.Toggle() // switch between dark and light
*/
package styles
