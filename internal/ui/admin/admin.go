// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// Section selects a catalog panel.
type Section int

const (
	SectionModels Section = iota
	SectionServers
)

// String returns the tab label.
func (s Section) String() string {
	if s == SectionServers {
		return "MCP Servers"
	}
	return "LLM Models"
}

// panel is what Model needs from either Panel instantiation.
type panel interface {
	Init() tea.Cmd
	Update(tea.Msg) tea.Cmd
	View() string
	SetSize(width, height int)
	Capturing() bool
	Busy() string
}

// Model is the admin tab.
type Model struct {
	Models  *Panel[model.LLMModel, model.LLMModelDraft]
	Servers *Panel[model.MCPServer, model.MCPServerDraft]

	theme   *styles.Theme
	keys    KeyMap
	section Section
	width   int
	height  int
}

// New builds the admin tab over both catalogs.
func New(models *catalog.Models, servers *catalog.Servers, theme *styles.Theme) Model {
	return Model{
		Models:  NewPanel(models, ModelSchema(), theme),
		Servers: NewPanel(servers, ServerSchema(), theme),
		theme:   theme,
		keys:    DefaultKeyMap(),
	}
}

// Init loads both lists.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Models.Init(), m.Servers.Init())
}

// Keys returns the key map, for help rendering.
func (m Model) Keys() KeyMap {
	return m.keys
}

// Section returns the visible panel.
func (m Model) Section() Section {
	return m.section
}

// Capturing reports whether the visible panel wants every key.
func (m Model) Capturing() bool {
	return m.active().Capturing()
}

// Busy describes the visible panel's in-flight work, or "".
func (m Model) Busy() string {
	return m.active().Busy()
}

func (m Model) active() panel {
	if m.section == SectionServers {
		return m.Servers
	}
	return m.Models
}

// Update handles a message. Keys go to the visible panel; results go to
// both, since either catalog may have work in flight.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		// The tab row takes two lines.
		m.Models.SetSize(msg.Width, msg.Height-2)
		m.Servers.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case tea.KeyMsg:
		if !m.Capturing() && key.Matches(msg, m.keys.NextTab) {
			m.section = (m.section + 1) % 2
			return m, nil
		}
		return m, m.active().Update(msg)
	}

	return m, tea.Batch(m.Models.Update(msg), m.Servers.Update(msg))
}

// View renders the tab row and the visible panel.
func (m Model) View() string {
	tabs := make([]string, 0, 2)
	for _, s := range []Section{SectionModels, SectionServers} {
		style := m.theme.Tab
		if s == m.section {
			style = m.theme.TabActive
		}
		tabs = append(tabs, style.Render(s.String()))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return row + "\n\n" + m.active().View()
}
