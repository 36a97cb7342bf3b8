// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/fakeapi"
	"github.com/jeranaias/parley/internal/notify"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/ui/styles"
)

type fixture struct {
	srv  *fakeapi.Server
	rec  *notify.Recorder
	ctrl *session.Controller
}

func newFixture(t *testing.T, seed bool) (Model, *fixture) {
	t.Helper()
	srv := fakeapi.New(fakeapi.Options{Logger: zerolog.Nop()})
	if seed {
		srv.Store().Seed()
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := api.NewClient(ts.URL + fakeapi.Prefix)
	rec := notify.NewRecorder()
	store := cache.New(cache.Options{Sink: rec})
	ctrl := session.New(session.Options{API: client, Resources: cache.NewResources(client, store), Sink: rec})
	t.Cleanup(ctrl.Close)

	theme := styles.NewTheme(styles.Options{NoColor: true, Mode: "dark"})
	m := New(ctrl, theme, Options{})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = drive(m, ctrl.Init())
	return m, &fixture{srv: srv, rec: rec, ctrl: ctrl}
}

// drive runs cmd and feeds every resulting message back through Update
// until nothing is left. Spinner ticks are dropped; they reschedule
// forever.
func drive(m Model, cmd tea.Cmd) Model {
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case nil, spinner.TickMsg:
	case tea.BatchMsg:
		for _, c := range msg {
			m = drive(m, c)
		}
	default:
		var next tea.Cmd
		m, next = m.Update(msg)
		m = drive(m, next)
	}
	return m
}

func typeText(m Model, s string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: k})
}

// =============================================================================
// TESTS
// =============================================================================

func TestModel_LoadsAndSelectsFirstChat(t *testing.T) {
	m, f := newFixture(t, true)

	assert.Equal(t, session.HasChats, f.ctrl.State())
	out := m.View()
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "Hello!")
	assert.Contains(t, out, fakeapi.EchoReply("Hello!"))
}

func TestModel_EmptyState(t *testing.T) {
	m, f := newFixture(t, false)

	assert.Equal(t, session.NoChats, f.ctrl.State())
	out := m.View()
	assert.Contains(t, out, "No chats yet")
	assert.Contains(t, out, "Select or create a chat")

	m = typeText(m, "hello")
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Create or select a chat first")
	assert.Equal(t, "hello", m.input.Value(), "a rejected send keeps the text")
}

func TestModel_SendShowsPendingThenReply(t *testing.T) {
	m, f := newFixture(t, true)

	m = typeText(m, "ping")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)

	assert.Empty(t, m.input.Value())
	assert.Equal(t, "sending", m.Busy())
	assert.Contains(t, m.View(), "You (sending)")

	m = drive(m, cmd)
	assert.Empty(t, m.Busy())
	out := m.View()
	assert.NotContains(t, out, "(sending)")
	assert.Contains(t, out, fakeapi.EchoReply("ping"))
	assert.Empty(t, f.rec.Errors())
}

func TestModel_FailedSendRestoresComposer(t *testing.T) {
	m, f := newFixture(t, true)
	f.srv.FailNext(fakeapi.RouteSendMessage, http.StatusInternalServerError, "Error sending message: boom")

	m = typeText(m, "ping")
	m, cmd := press(m, tea.KeyEnter)
	m = drive(m, cmd)

	assert.Equal(t, "ping", m.input.Value())
	assert.NotContains(t, m.View(), "(sending)")
	assert.Equal(t, []string{"Failed to send message"}, f.rec.Errors())
}

func TestModel_SecondSendWhileWaitingIsRejected(t *testing.T) {
	m, _ := newFixture(t, true)

	m = typeText(m, "one")
	m, first := press(m, tea.KeyEnter)
	require.NotNil(t, first)

	m = typeText(m, "two")
	m, second := press(m, tea.KeyEnter)
	assert.Nil(t, second)
	assert.Contains(t, m.View(), "Still waiting for the last reply")
	assert.Equal(t, "two", m.input.Value())
}

func TestModel_NewChatAndSidebarSelection(t *testing.T) {
	m, f := newFixture(t, true)
	first := f.ctrl.Selected()

	m, cmd := press(m, tea.KeyCtrlN)
	m = drive(m, cmd)
	require.Len(t, f.ctrl.Chats(), 2)
	assert.NotEqual(t, first, f.ctrl.Selected(), "the new chat is selected")
	assert.Equal(t, []string{"Chat created successfully!"}, f.rec.Successes())

	m, _ = press(m, tea.KeyTab)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m, cmd = press(m, tea.KeyEnter)
	m = drive(m, cmd)
	assert.Equal(t, first, f.ctrl.Selected())
	assert.Contains(t, m.View(), "Hello!")
}

func TestModel_DeleteNeedsConfirmation(t *testing.T) {
	m, f := newFixture(t, true)

	m, _ = press(m, tea.KeyCtrlD)
	require.True(t, m.Confirming())
	assert.Contains(t, m.View(), `Delete chat "Welcome"`)

	m, _ = press(m, tea.KeyEsc)
	assert.False(t, m.Confirming())
	assert.Len(t, f.ctrl.Chats(), 1)

	m, _ = press(m, tea.KeyCtrlD)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	m = drive(m, cmd)

	assert.Empty(t, f.ctrl.Chats())
	assert.Equal(t, session.NoChats, f.ctrl.State())
	assert.Contains(t, f.rec.Successes(), "Chat deleted successfully!")
	assert.Contains(t, m.View(), "No chats yet")
}

func TestModel_ScopeChangeClosesPromptAndReloads(t *testing.T) {
	m, f := newFixture(t, true)
	m, _ = press(m, tea.KeyCtrlD)
	require.True(t, m.Confirming())

	m, cmd := m.Update(cache.ScopeChangedMsg{Scope: "other"})
	assert.False(t, m.Confirming(), "a delete prompt for the previous identity is dropped")
	assert.Equal(t, session.NoChats, f.ctrl.State())
	assert.Contains(t, m.View(), "No chats yet")

	m = drive(m, cmd)
	assert.Equal(t, 2, f.srv.Hits(fakeapi.RouteListChats))
	assert.Contains(t, m.View(), "Welcome")
}

func TestModel_NarrowLayoutHidesSidebar(t *testing.T) {
	m, _ := newFixture(t, true)
	assert.Contains(t, m.View(), "Chats")

	m, _ = m.Update(tea.WindowSizeMsg{Width: 50, Height: 20})
	out := m.View()
	assert.NotContains(t, out, "Chats")
	assert.Contains(t, out, "Hello!")
}
