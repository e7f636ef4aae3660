// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat interface for medbot.

The screen is a Bubble Tea program with three parts: a viewport holding the
conversation bubbles, a composing indicator, and a text area for input.

# Data Flow

The app layer never touches the model directly. It writes into a Sink, which
turns every write into a tea.Msg delivered with Program.Send:

	app.App -> turn.Controller -> Sink -> tea.Program -> Model.Update

Bot bubbles are rewritten in full on every streamed chunk and once per
character during the typing replay. The Sink coalesces these writes with a
rate limiter and always delivers the final text. Each update carries a
sequence number so that a late delivery never overwrites newer text.

# Key Bindings

	Enter     send the input
	Esc       cancel the reply in progress
	Ctrl+C    cancel the reply, or quit when idle
	Ctrl+O    upload the file whose path is typed in the input
	Ctrl+S    read the last reply aloud
	Ctrl+R    start or stop the microphone
	Ctrl+T    switch between dark and light themes
	PgUp/PgDn scroll the conversation

# Live Settings

When a config path is given, the file is watched. Theme, markdown rendering,
timestamps and the typing replay speed change without a restart.
*/
package chat
