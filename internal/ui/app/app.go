// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/notify"
	"github.com/jeranaias/parley/internal/ui/admin"
	"github.com/jeranaias/parley/internal/ui/chat"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// healthTimeout bounds one health check.
const healthTimeout = 5 * time.Second

// Tab is a top-level view.
type Tab int

const (
	TabChat Tab = iota
	TabAdmin
)

// String returns the tab label.
func (t Tab) String() string {
	if t == TabAdmin {
		return "Admin"
	}
	return "Chat"
}

// HealthChecker checks the backend. *api.Client satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) (*api.HealthStatus, error)
}

// Options configures the root model.
type Options struct {
	Chat   chat.Model
	Admin  admin.Model
	Theme  *styles.Theme
	Toasts *notify.Toasts
	Cache  *cache.Cache
	Health HealthChecker
	// HealthInterval re-checks the backend; zero checks once at start.
	HealthInterval time.Duration
	BaseURL        string
	Logger         zerolog.Logger
	Now            func() time.Time
}

// =============================================================================
// MESSAGES
// =============================================================================

// HealthMsg is the result of a backend health check.
type HealthMsg struct {
	Status string
	Err    error
}

type healthTickMsg struct{}

// =============================================================================
// MODEL
// =============================================================================

// Model is the root of the TUI.
type Model struct {
	chat    chat.Model
	admin   admin.Model
	theme   *styles.Theme
	toasts  *notify.Toasts
	cache   *cache.Cache
	checker HealthChecker
	logger  zerolog.Logger
	now     func() time.Time

	keys           KeyMap
	help           help.Model
	tab            Tab
	health         components.Health
	healthInterval time.Duration
	baseURL        string

	width  int
	height int
}

// New creates the root model.
func New(opts Options) Model {
	m := Model{
		chat:           opts.Chat,
		admin:          opts.Admin,
		theme:          opts.Theme,
		toasts:         opts.Toasts,
		cache:          opts.Cache,
		checker:        opts.Health,
		logger:         opts.Logger.With().Str("component", "tui").Logger(),
		now:            opts.Now,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		healthInterval: opts.HealthInterval,
		baseURL:        opts.BaseURL,
	}
	if m.toasts == nil {
		m.toasts = notify.NewToasts()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Tab returns the visible tab.
func (m Model) Tab() Tab { return m.tab }

// Health returns the last health check result.
func (m Model) Health() components.Health { return m.health }

// Init loads both tabs, checks the backend and starts the toast clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.chat.Init(), m.admin.Init(), m.checkHealth(), notify.TickCmd())
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m.resize()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case notify.TickMsg:
		m.toasts.Tick()
		return m, notify.TickCmd()

	case HealthMsg:
		return m.handleHealth(msg)

	case healthTickMsg:
		return m, m.checkHealth()

	case cache.RefreshFailedMsg:
		m.logger.Debug().Err(msg.Err).Str("key", msg.Key.String()).Msg("background refresh failed")
	}

	// Results: session messages are owned by the chat tab and catalog
	// messages by the admin tab; each ignores what it does not own.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)
	m.admin, cmd = m.admin.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Dismiss):
		m.toasts.DismissNewest()
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	// Open prompts keep the tab so a confirmation is never left dangling
	// off screen.
	if !m.capturing() {
		switch {
		case key.Matches(msg, m.keys.Chat):
			m.tab = TabChat
			return m, nil
		case key.Matches(msg, m.keys.Admin):
			m.tab = TabAdmin
			return m, nil
		case key.Matches(msg, m.keys.NextTab):
			m.tab = (m.tab + 1) % 2
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.tab == TabAdmin {
		m.admin, cmd = m.admin.Update(msg)
	} else {
		m.chat, cmd = m.chat.Update(msg)
	}
	return m, cmd
}

func (m Model) capturing() bool {
	if m.tab == TabAdmin {
		return m.admin.Capturing()
	}
	return m.chat.Confirming()
}

// frameHeight is the header, status bar and help line.
const frameHeight = 3

func (m Model) resize() (tea.Model, tea.Cmd) {
	m.theme.SetSize(m.width, m.height)
	body := tea.WindowSizeMsg{Width: m.width, Height: m.bodyHeight()}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(body)
	cmds = append(cmds, cmd)
	m.admin, cmd = m.admin.Update(body)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) bodyHeight() int {
	if h := m.height - frameHeight; h > 1 {
		return h
	}
	return 1
}

// =============================================================================
// HEALTH
// =============================================================================

func (m Model) checkHealth() tea.Cmd {
	checker := m.checker
	if checker == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		st, err := checker.Health(ctx)
		if err != nil {
			return HealthMsg{Err: err}
		}
		return HealthMsg{Status: st.Status}
	}
}

func (m Model) handleHealth(msg HealthMsg) (tea.Model, tea.Cmd) {
	prev := m.health
	if msg.Err != nil {
		m.health = components.HealthDown
	} else {
		m.health = components.HealthOK
	}
	switch {
	case m.health == prev:
	case msg.Err != nil:
		m.logger.Warn().Err(msg.Err).Str("health", m.health.String()).Msg("backend health changed")
	default:
		m.logger.Info().Str("health", m.health.String()).Msg("backend health changed")
	}

	if m.healthInterval <= 0 {
		return m, nil
	}
	return m, tea.Tick(m.healthInterval, func(time.Time) tea.Msg { return healthTickMsg{} })
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the frame around the active tab.
func (m Model) View() string {
	if m.width == 0 {
		return m.theme.Muted.Render("Loading...")
	}

	var body, busy string
	var tabKeys help.KeyMap
	if m.tab == TabAdmin {
		body, busy, tabKeys = m.admin.View(), m.admin.Busy(), m.admin.Keys()
	} else {
		body, busy, tabKeys = m.chat.View(), m.chat.Busy(), m.chat.Keys()
	}

	bh := m.bodyHeight()
	keys := helpKeys{tab: tabKeys, global: m.keys}
	if m.help.ShowAll {
		body = lipgloss.Place(m.width, bh, lipgloss.Center, lipgloss.Center, m.help.View(keys))
	}
	body = lipgloss.NewStyle().Width(m.width).Height(bh).MaxHeight(bh).Render(body)

	now := m.now()
	body = components.OverlayBottomRight(body, components.RenderToastStack(m.toasts.Active(), m.width, 0, now), m.width)

	var stats cache.Stats
	if m.cache != nil {
		stats = m.cache.Stats()
	}
	status := components.StatusBar{
		Health:  m.health,
		BaseURL: m.baseURL,
		Busy:    busy,
		Stats:   stats,
	}.Render(m.theme, m.width)

	footer := ""
	if !m.help.ShowAll {
		footer = m.help.View(keys)
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, status, footer)
}

func (m Model) renderHeader() string {
	tabs := []string{m.theme.HeaderTitle.Render("parley")}
	for _, t := range []Tab{TabChat, TabAdmin} {
		style := m.theme.Tab
		if t == m.tab {
			style = m.theme.TabActive
		}
		tabs = append(tabs, style.Render(t.String()))
	}
	return m.theme.Header.Width(m.width).MaxWidth(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

// helpKeys merges the active tab's bindings with the global ones.
type helpKeys struct {
	tab    help.KeyMap
	global KeyMap
}

func (k helpKeys) ShortHelp() []key.Binding {
	return append(append([]key.Binding{}, k.tab.ShortHelp()...), k.global.ShortHelp()...)
}

func (k helpKeys) FullHelp() [][]key.Binding {
	return append(append([][]key.Binding{}, k.tab.FullHelp()...), k.global.FullHelp()...)
}
