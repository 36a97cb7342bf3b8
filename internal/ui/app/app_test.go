// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/fakeapi"
	"github.com/jeranaias/parley/internal/notify"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/ui/admin"
	"github.com/jeranaias/parley/internal/ui/chat"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

type downChecker struct{}

func (downChecker) Health(context.Context) (*api.HealthStatus, error) {
	return nil, errors.New("connection refused")
}

func newApp(t *testing.T, checker HealthChecker) (Model, *fakeapi.Server, *notify.Toasts) {
	t.Helper()
	srv := fakeapi.New(fakeapi.Options{Logger: zerolog.Nop()})
	srv.Store().Seed()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := api.NewClient(ts.URL + fakeapi.Prefix)
	toasts := notify.NewToasts()
	store := cache.New(cache.Options{Sink: toasts})
	ctrl := session.New(session.Options{API: client, Resources: cache.NewResources(client, store), Sink: toasts})
	t.Cleanup(ctrl.Close)
	catOpts := catalog.Options{Cache: store, Sink: toasts}

	theme := styles.NewTheme(styles.Options{NoColor: true, Mode: "dark"})
	if checker == nil {
		checker = client
	}
	m := New(Options{
		Chat:    chat.New(ctrl, theme, chat.Options{}),
		Admin:   admin.New(catalog.NewModels(client, catOpts), catalog.NewServers(client, catOpts), theme),
		Theme:   theme,
		Toasts:  toasts,
		Cache:   store,
		Health:  checker,
		BaseURL: client.BaseURL(),
	})
	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = drive(m, m.Init())
	return m, srv, toasts
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

// drive runs cmd and feeds results back through Update. Clock-driven
// messages (spinner, cursor blink, toast tick) reschedule forever and are
// dropped.
func drive(m Model, cmd tea.Cmd) Model {
	if cmd == nil {
		return m
	}
	msg := cmd()
	switch msg := msg.(type) {
	case nil, spinner.TickMsg, notify.TickMsg:
		return m
	case tea.BatchMsg:
		for _, c := range msg {
			m = drive(m, c)
		}
		return m
	}
	if strings.Contains(fmt.Sprintf("%T", msg), "cursor.") {
		return m
	}
	next, c := m.Update(msg)
	return drive(next.(Model), c)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

// =============================================================================
// TESTS
// =============================================================================

func TestApp_StartupRendersFrame(t *testing.T) {
	m, _, _ := newApp(t, nil)

	assert.Equal(t, components.HealthOK, m.Health())
	out := m.View()
	assert.Contains(t, out, "parley")
	assert.Contains(t, out, "online")
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, fakeapi.EchoReply("Hello!"))
	assert.Contains(t, out, "cache ")
}

func TestApp_HealthDown(t *testing.T) {
	m, _, _ := newApp(t, downChecker{})

	assert.Equal(t, components.HealthDown, m.Health())
	assert.Contains(t, m.View(), "offline")
}

func TestApp_ScopeChangeReloadsBothTabs(t *testing.T) {
	m, srv, _ := newApp(t, nil)
	modelLoads := srv.Hits(fakeapi.RouteListModels)

	next, cmd := m.Update(cache.ScopeChangedMsg{Scope: "other"})
	m = drive(next.(Model), cmd)

	assert.Equal(t, 2, srv.Hits(fakeapi.RouteListChats))
	assert.Greater(t, srv.Hits(fakeapi.RouteListModels), modelLoads)
	assert.Contains(t, m.View(), "Welcome")
}

func TestApp_TabSwitching(t *testing.T) {
	m, _, _ := newApp(t, nil)

	m, _ = press(m, tea.KeyF2)
	assert.Equal(t, TabAdmin, m.Tab())
	assert.Contains(t, m.View(), "LLM Models (3)")

	m, _ = press(m, tea.KeyCtrlT)
	assert.Equal(t, TabChat, m.Tab())
}

func TestApp_PromptHoldsTab(t *testing.T) {
	m, _, _ := newApp(t, nil)

	m, _ = press(m, tea.KeyCtrlD)
	m, _ = press(m, tea.KeyF2)
	assert.Equal(t, TabChat, m.Tab(), "the delete prompt keeps focus")
	assert.Contains(t, m.View(), `Delete chat "Welcome"`)
}

func TestApp_FailureRaisesToast(t *testing.T) {
	m, srv, toasts := newApp(t, nil)
	srv.FailNext(fakeapi.RouteSendMessage, http.StatusInternalServerError, "")

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ping")})
	m, cmd := press(m, tea.KeyEnter)
	m = drive(m, cmd)

	require.Len(t, toasts.Active(), 1)
	assert.Contains(t, m.View(), "Failed to send message")

	m, _ = press(m, tea.KeyCtrlX)
	assert.Empty(t, toasts.Active())
	assert.NotContains(t, m.View(), "Failed to send message")
}

func TestApp_AdminResultsReachCatalog(t *testing.T) {
	m, _, toasts := newApp(t, nil)

	m, _ = press(m, tea.KeyF2)
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	m = drive(next.(Model), cmd)

	active := toasts.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Server connection successful!", active[0].Message)
}

func TestApp_HelpToggleAndQuit(t *testing.T) {
	m, _, _ := newApp(t, nil)

	assert.NotContains(t, m.View(), "scroll up")
	m, _ = press(m, tea.KeyCtrlG)
	assert.Contains(t, m.View(), "scroll up")

	_, cmd := press(m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
