// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/notify"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToast renders a single toast with its indicator and countdown.
func RenderToast(toast notify.Toast, width int, now time.Time) string {
	maxWidth := 60
	if width > 0 && width-8 < maxWidth {
		maxWidth = width - 8
	}
	if maxWidth < 30 {
		maxWidth = 30
	}

	var color lipgloss.AdaptiveColor
	var icon string
	switch toast.Kind {
	case notify.KindError:
		color, icon = styles.Rose, styles.StatusIndicators.Error
	case notify.KindSuccess:
		color, icon = styles.Emerald, styles.StatusIndicators.Success
	default:
		color, icon = styles.Cyan, styles.StatusIndicators.Info
	}

	iconStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	messageStyle := lipgloss.NewStyle().Foreground(styles.TextPrimary)

	content := iconStyle.Render(icon+" ") + messageStyle.Render(wrapToastText(toast.Message, maxWidth-10))

	if secs := int(toast.Remaining(now).Seconds()); secs > 0 {
		hint := lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)
		content += "\n" + hint.Render("[C-x] Dismiss  "+strconv.Itoa(secs)+"s")
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 2).
		MaxWidth(maxWidth).
		Render(content)
}

// RenderToastStack stacks toasts (newest on top) in the bottom-right of a
// width x height area. It returns "" when there is nothing to show.
func RenderToastStack(toasts []notify.Toast, width, height int, now time.Time) string {
	if len(toasts) == 0 {
		return ""
	}

	rendered := make([]string, 0, len(toasts))
	for _, t := range toasts {
		rendered = append(rendered, RenderToast(t, width, now))
	}
	stack := lipgloss.NewStyle().
		MarginRight(2).
		MarginBottom(1).
		Render(lipgloss.JoinVertical(lipgloss.Right, rendered...))

	if width > 0 && height > 0 {
		return lipgloss.Place(width, height, lipgloss.Right, lipgloss.Bottom, stack)
	}
	return stack
}

// wrapToastText performs simple word wrapping for toast messages.
func wrapToastText(text string, maxWidth int) string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		return text
	}

	var lines []string
	var line strings.Builder
	for _, word := range words {
		switch {
		case line.Len() == 0:
			line.WriteString(word)
		case line.Len()+1+len(word) <= maxWidth:
			line.WriteString(" ")
			line.WriteString(word)
		default:
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(word)
		}
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
