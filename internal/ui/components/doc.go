// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable visual pieces of the parley TUI.
//
// Components are render functions and small value types; they hold no
// session state. The chat and admin views own the state and call these to
// draw it.
//
// # Key Types
//
//   - RenderToastStack: Bottom-right stack of notify.Toast values
//   - Markdown: Width-aware glamour renderer for assistant replies
//   - HighlightJSON: Chroma highlighting for catalog configuration
//   - StatusBar: Backend health, cache counters and busy state
//   - RenderConfirm: Destructive action confirmation box
//
// # Usage
//
//	md := components.NewMarkdown(true)
//	body := md.Render(msg.Content, width)
//
//	bar := components.StatusBar{Health: components.HealthOK, BaseURL: url}
//	footer := bar.Render(theme, width)
package components
