// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keyboard bindings for the admin tab.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	NextTab  key.Binding
	New      key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Test     key.Binding
	Filter   key.Binding
	Refresh  key.Binding
	Confirm  key.Binding
	Cancel   key.Binding
	NextItem key.Binding
	PrevItem key.Binding
	Submit   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("]", "["),
			key.WithHelp("[/]", "models/servers"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e", "enter"),
			key.WithHelp("e", "edit"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete"),
		),
		Test: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "test connection"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "refresh"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "n", "N"),
			key.WithHelp("esc", "cancel"),
		),
		NextItem: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("Tab", "next field"),
		),
		PrevItem: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("S-Tab", "previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s", "enter"),
			key.WithHelp("C-s", "save"),
		),
	}
}

// ShortHelp returns the list bindings for the compact help line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.New, k.Edit, k.Delete, k.Test, k.Filter}
}

// FullHelp returns every binding, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextTab, k.Refresh},
		{k.New, k.Edit, k.Delete, k.Test, k.Filter},
		{k.NextItem, k.PrevItem, k.Submit, k.Cancel},
	}
}
