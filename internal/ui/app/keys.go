// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the global bindings. They are chosen so that none collide
// with text typed into the composer or a form.
type KeyMap struct {
	Quit    key.Binding
	Chat    key.Binding
	Admin   key.Binding
	NextTab key.Binding
	Dismiss key.Binding
	Help    key.Binding
}

// DefaultKeyMap returns the default global bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Chat: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "chat"),
		),
		Admin: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("F2", "admin"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "switch tab"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "dismiss"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "more help"),
		),
	}
}

// ShortHelp returns the global bindings for the help line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Dismiss, k.Help, k.Quit}
}

// FullHelp returns the global bindings as one group.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Chat, k.Admin, k.NextTab, k.Dismiss, k.Help, k.Quit}}
}
