// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Options controls theme detection.
type Options struct {
	// NoColor forces the ASCII profile. The NO_COLOR environment variable
	// has the same effect.
	NoColor bool
	// Mode is "dark", "light" or "auto" (detect).
	Mode string
}

// Theme holds the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// FRAME
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Tab         lipgloss.Style
	TabActive   lipgloss.Style
	StatusBar   lipgloss.Style
	Help        lipgloss.Style

	// ==========================================================================
	// CHAT
	// ==========================================================================

	Sidebar         lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	PendingLabel    lipgloss.Style
	MessageBody     lipgloss.Style
	Timestamp       lipgloss.Style
	Composer        lipgloss.Style
	ComposerFocused lipgloss.Style

	// ==========================================================================
	// ADMIN
	// ==========================================================================

	Row         lipgloss.Style
	RowSelected lipgloss.Style
	Active      lipgloss.Style
	Inactive    lipgloss.Style
	Modal       lipgloss.Style
	ModalTitle  lipgloss.Style
	FieldLabel  lipgloss.Style
	FieldFocus  lipgloss.Style
	Danger      lipgloss.Style

	// ==========================================================================
	// TEXT
	// ==========================================================================

	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
}

// NewTheme detects the terminal and builds every style.
func NewTheme(opts Options) *Theme {
	profile := termenv.ColorProfile()
	if opts.NoColor || os.Getenv("NO_COLOR") != "" {
		profile = termenv.Ascii
	}
	lipgloss.SetColorProfile(profile)

	isDark := true
	switch strings.ToLower(opts.Mode) {
	case "light":
		isDark = false
	case "dark":
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.Tab = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)
	t.TabActive = t.Tab.
		Foreground(TextInverse).
		Background(Purple).
		Bold(true)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.SidebarSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true)
	t.UserLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.PendingLabel = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)
	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.Composer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim).
		Padding(0, 1)
	t.ComposerFocused = t.Composer.
		BorderForeground(Cyan)

	t.Row = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.RowSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg)
	t.Active = lipgloss.NewStyle().
		Foreground(Emerald)
	t.Inactive = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.Modal = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)
	t.ModalTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true).
		MarginBottom(1)
	t.FieldLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(14)
	t.FieldFocus = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true).
		Width(14)
	t.Danger = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(1, 2)

	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Success = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.Warning = lipgloss.NewStyle().Foreground(Amber)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// Layout returns the current layout mode based on width.
func (t *Theme) Layout() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// SidebarWidth is the chat list width for the current layout; zero hides
// the sidebar.
func (t *Theme) SidebarWidth() int {
	switch t.Layout() {
	case LayoutNarrow:
		return 0
	case LayoutMedium:
		return 22
	default:
		return 30
	}
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)
