// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view of the TUI.
//
// The view is a thin shell over session.Controller: a chat list sidebar, a
// transcript viewport and a single-line composer. Every state change goes
// through the controller; the view only mirrors the composer text into it
// and renders what it reports, including pending messages and the
// per-chat send guard.
//
// # Key Types
//
//   - Model: Bubble Tea sub-model for the chat tab
//   - KeyMap: Key bindings and help text
//
// # Usage
//
//	view := chat.New(ctrl, theme, chat.Options{Markdown: cfg.UI.Markdown})
//	cmd := view.Init()
//	view, cmd = view.Update(msg)
//	out := view.View()
package chat
