// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// MaxInputLength bounds the composer.
const MaxInputLength = 8000

// focus is the element receiving keys.
type focus int

const (
	focusComposer focus = iota
	focusSidebar
)

// Options configures the view.
type Options struct {
	// Markdown renders assistant replies with glamour.
	Markdown bool
}

// Model is the chat tab.
type Model struct {
	session *session.Controller
	theme   *styles.Theme
	keys    KeyMap
	md      *components.Markdown

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	focus         focus
	cursor        int
	confirmDelete bool
	notice        string

	width  int
	height int
	ready  bool
}

// New creates the view over ctrl.
func New(ctrl *session.Controller, theme *styles.Theme, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = MaxInputLength
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		session:  ctrl,
		theme:    theme,
		keys:     DefaultKeyMap(),
		md:       components.NewMarkdown(opts.Markdown),
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}
}

// Init loads the chat list and catalog and starts the blink and spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.session.Init(), textinput.Blink, m.spinner.Tick)
}

// Keys returns the key map, for help rendering.
func (m Model) Keys() KeyMap {
	return m.keys
}

// Busy describes the selected chat's in-flight work, or "".
func (m Model) Busy() string {
	id := m.session.Selected()
	switch {
	case id != 0 && m.session.Sending(id):
		return "sending"
	case m.session.Creating():
		return "creating chat"
	case id != 0 && m.session.Deleting(id):
		return "deleting chat"
	case m.session.Loading():
		return "loading"
	}
	return ""
}

// Confirming reports whether the delete prompt is open. The parent keeps
// global keys away from the view while it is.
func (m Model) Confirming() bool {
	return m.confirmDelete
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message for the chat tab.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case cache.ScopeChangedMsg:
		m.confirmDelete = false
		cmds = append(cmds, m.session.Update(msg))
		m.syncInput()

	default:
		if cmd := m.session.Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
		m.syncInput()
	}

	m.clampCursor()
	m.refreshTranscript()
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.confirmDelete {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.confirmDelete = false
			cmd, err := m.session.DeleteChat(0)
			m.setNotice(err)
			return m, cmd
		case key.Matches(msg, m.keys.Cancel):
			m.confirmDelete = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Focus):
		m.toggleFocus()
		return m, nil
	case key.Matches(msg, m.keys.NewChat):
		cmd, err := m.session.NewChat("")
		m.setNotice(err)
		return m, cmd
	case key.Matches(msg, m.keys.Delete):
		if _, ok := m.session.SelectedChat(); ok {
			m.confirmDelete = true
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.session.RefreshChats()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keys.Send) {
		return m.send()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetInput(m.input.Value())
	m.notice = ""
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	chats := m.session.Chats()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(chats)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		if m.cursor < len(chats) {
			cmd := m.session.Select(chats[m.cursor].ID)
			m.toggleFocus()
			return m, cmd
		}
	}
	return m, nil
}

// send hands the composer text to the controller. Rejections leave the
// text in place and explain why.
func (m Model) send() (Model, tea.Cmd) {
	m.session.SetInput(m.input.Value())
	cmd, err := m.session.Send()
	m.setNotice(err)
	m.syncInput()
	if cmd == nil {
		return m, nil
	}
	m.viewport.GotoBottom()
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m *Model) setNotice(err error) {
	switch {
	case err == nil:
		m.notice = ""
	case errors.Is(err, session.ErrEmptyInput):
		m.notice = "Type a message first"
	case errors.Is(err, session.ErrNoChatSelected):
		m.notice = "Create or select a chat first"
	case errors.Is(err, session.ErrInFlight):
		m.notice = "Still waiting for the last reply"
	default:
		m.notice = err.Error()
	}
}

// syncInput pulls the controller's composer text back into the widget,
// which changes after a send clears it or a failed send restores it.
func (m *Model) syncInput() {
	if v := m.session.Input(); v != m.input.Value() {
		m.input.SetValue(v)
		m.input.CursorEnd()
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusComposer {
		m.focus = focusSidebar
		m.input.Blur()
		m.cursor = m.selectedIndex()
		return
	}
	m.focus = focusComposer
	m.input.Focus()
}

func (m Model) selectedIndex() int {
	id := m.session.Selected()
	for i, c := range m.session.Chats() {
		if c.ID == id {
			return i
		}
	}
	return 0
}

func (m *Model) clampCursor() {
	n := len(m.session.Chats())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

// composerHeight is the bordered input plus the notice line.
const composerHeight = 4

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.theme.SetSize(width, height)

	tw := m.transcriptWidth()
	th := height - composerHeight
	if th < 1 {
		th = 1
	}
	m.viewport.Width = tw
	m.viewport.Height = th
	m.input.Width = tw - 6
	m.ready = true
}

func (m Model) transcriptWidth() int {
	w := m.width
	if sw := m.theme.SidebarWidth(); sw > 0 {
		w -= sw + 2
	}
	if w < 10 {
		w = 10
	}
	return w
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript(m.viewport.Width))
	if atBottom {
		m.viewport.GotoBottom()
	}
}
