// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// HEALTH
// =============================================================================

// Health is the last known backend health.
type Health int

const (
	HealthUnknown Health = iota
	HealthOK
	HealthDown
)

// String returns the health label.
func (h Health) String() string {
	switch h {
	case HealthOK:
		return "online"
	case HealthDown:
		return "offline"
	default:
		return "checking"
	}
}

// Icon returns the ASCII indicator for h.
func (h Health) Icon() string {
	switch h {
	case HealthOK:
		return styles.StatusIndicators.Active
	case HealthDown:
		return styles.StatusIndicators.Error
	default:
		return styles.StatusIndicators.Pending
	}
}

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar is the one-line footer.
type StatusBar struct {
	Health  Health
	BaseURL string
	// Busy describes an in-flight operation, e.g. "sending".
	Busy  string
	Stats cache.Stats
	Hint  string
}

// Render draws the bar at width.
func (s StatusBar) Render(theme *styles.Theme, width int) string {
	var healthStyle lipgloss.Style
	switch s.Health {
	case HealthOK:
		healthStyle = theme.Success
	case HealthDown:
		healthStyle = theme.Error
	default:
		healthStyle = theme.Muted
	}

	left := []string{healthStyle.Render(s.Health.Icon() + " " + s.Health.String())}
	if s.BaseURL != "" {
		left = append(left, theme.Muted.Render(s.BaseURL))
	}
	if s.Busy != "" {
		left = append(left, theme.Warning.Render(s.Busy+"..."))
	}

	right := []string{theme.Muted.Render(fmt.Sprintf("cache %d/%d", s.Stats.Hits, s.Stats.Hits+s.Stats.Misses))}
	if s.Hint != "" {
		right = append(right, theme.Help.Render(s.Hint))
	}

	l := strings.Join(left, "  ")
	r := strings.Join(right, "  ")
	inner := width - 2
	gap := inner - lipgloss.Width(l) - lipgloss.Width(r)
	if gap < 1 {
		return theme.StatusBar.Width(width).MaxWidth(width).Render(l)
	}
	return theme.StatusBar.Width(width).Render(l + strings.Repeat(" ", gap) + r)
}

// =============================================================================
// CONFIRMATION
// =============================================================================

// RenderConfirm draws a destructive action prompt with its key hints.
func RenderConfirm(theme *styles.Theme, prompt string, width int) string {
	w := width - 8
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	body := lipgloss.NewStyle().Width(w).Render(prompt)
	hints := theme.Help.Render("[y] confirm  [n/esc] cancel")
	return theme.Danger.Render(body + "\n\n" + hints)
}
