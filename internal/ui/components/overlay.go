// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// OverlayBottomRight draws top over the bottom-right corner of base. Lines
// of base under the overlay are cut, ANSI-aware, to make room; the rest of
// base is untouched. An overlay taller than base is clipped at the top.
func OverlayBottomRight(base, top string, width int) string {
	if top == "" {
		return base
	}
	baseLines := strings.Split(base, "\n")
	topLines := strings.Split(top, "\n")
	if len(topLines) > len(baseLines) {
		topLines = topLines[len(topLines)-len(baseLines):]
	}

	left := width - lipgloss.Width(top)
	if left < 0 {
		left = 0
	}
	start := len(baseLines) - len(topLines)
	for i, line := range topLines {
		under := truncate.String(baseLines[start+i], uint(left))
		if gap := left - lipgloss.Width(under); gap > 0 {
			under += strings.Repeat(" ", gap)
		}
		baseLines[start+i] = under + line
	}
	return strings.Join(baseLines, "\n")
}
