// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the root Bubble Tea model: a header with the chat and
// admin tabs, the active tab's view, a status bar with backend health and
// cache statistics, and the toast overlay fed by the notification sink.
//
// # Usage
//
//	toasts := notify.NewToasts()
//	m := app.New(app.Options{Chat: chatView, Admin: adminView, Toasts: toasts, ...})
//	p := tea.NewProgram(m, tea.WithAltScreen())
package app
