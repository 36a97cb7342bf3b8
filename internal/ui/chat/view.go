// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/util"
)

// View renders the chat tab.
func (m Model) View() string {
	if !m.ready {
		return m.theme.Muted.Render("Loading...")
	}

	main := lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.renderComposer())
	if sw := m.theme.SidebarWidth(); sw > 0 {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(sw), main)
	}

	if m.confirmDelete {
		if c, ok := m.session.SelectedChat(); ok {
			prompt := components.RenderConfirm(m.theme, "Delete chat \""+c.DisplayTitle()+"\" and all its messages?", m.width)
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, prompt)
		}
	}
	return main
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(width int) string {
	var b strings.Builder
	title := m.theme.HeaderTitle.Render("Chats")
	if m.focus == focusSidebar {
		title += m.theme.Muted.Render(" (focused)")
	}
	b.WriteString(title + "\n")

	chats := m.session.Chats()
	if len(chats) == 0 {
		b.WriteString(m.theme.Muted.Render(wordwrap.String("No chats yet. Press C-n to start one.", width)))
	}

	selected := m.session.Selected()
	for i, c := range chats {
		marker := "  "
		if c.ID == selected {
			marker = "> "
		}
		line := util.PadWidth(marker+c.DisplayTitle(), width)
		style := m.theme.SidebarItem
		if c.ID == selected || (m.focus == focusSidebar && i == m.cursor) {
			style = m.theme.SidebarSelected
		}
		b.WriteString(style.Render(line) + "\n")
	}

	return m.theme.Sidebar.
		Width(width).
		Height(m.height).
		Render(strings.TrimRight(b.String(), "\n"))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderTranscript(width int) string {
	if _, ok := m.session.SelectedChat(); !ok {
		if m.session.LoadErr() != nil {
			return m.theme.Error.Render("Could not load chats. Press C-r to retry.")
		}
		return m.theme.Muted.Render("Select or create a chat to begin.")
	}

	msgs := m.session.Messages()
	if len(msgs) == 0 {
		if m.session.Loading() {
			return m.theme.Muted.Render(m.spinner.View() + " Loading messages...")
		}
		return m.theme.Muted.Render("No messages yet. Say hello!")
	}

	bodyWidth := width - 2
	parts := make([]string, 0, len(msgs)+1)
	for _, msg := range msgs {
		parts = append(parts, m.renderMessage(msg, bodyWidth))
	}
	if id := m.session.Selected(); m.session.Sending(id) {
		parts = append(parts, m.theme.AssistantLabel.Render("Assistant ")+m.theme.Muted.Render(m.spinner.View()+" thinking"))
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderMessage(msg model.Message, width int) string {
	var label string
	switch {
	case msg.IsPending():
		label = m.theme.PendingLabel.Render(msg.Role.DisplayName() + " (sending)")
	case msg.Role == model.RoleAssistant:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	}
	if !msg.CreatedAt.IsZero() {
		label += " " + m.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))
	}

	body := msg.Content
	if msg.Role == model.RoleAssistant {
		body = m.md.Render(body, width)
	} else {
		body = wordwrap.String(body, width)
	}
	return label + "\n" + m.theme.MessageBody.Render(body)
}

// =============================================================================
// COMPOSER
// =============================================================================

func (m Model) renderComposer() string {
	style := m.theme.Composer
	if m.focus == focusComposer {
		style = m.theme.ComposerFocused
	}
	box := style.Width(m.transcriptWidth() - 2).Render(m.input.View())

	notice := ""
	switch {
	case m.notice != "":
		notice = m.theme.Warning.Render(m.notice)
	case m.session.Selected() != 0 && m.session.Sending(m.session.Selected()):
		notice = m.theme.Muted.Render("Waiting for reply...")
	}
	return box + "\n" + notice
}
