// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders assistant replies. Renderers are built lazily per wrap
// width. It is not safe for concurrent use; call it from View.
type Markdown struct {
	enabled   bool
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer. A disabled renderer returns content
// unchanged.
func NewMarkdown(enabled bool) *Markdown {
	return &Markdown{enabled: enabled, renderers: make(map[int]*glamour.TermRenderer)}
}

// Render renders md wrapped at width, falling back to the raw text when
// glamour fails.
func (m *Markdown) Render(md string, width int) string {
	if m == nil || !m.enabled || strings.TrimSpace(md) == "" {
		return md
	}
	if width < 20 {
		width = 20
	}

	r, ok := m.renderers[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.enabled = false
			return md
		}
		m.renderers[width] = r
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	// glamour pads with blank lines; the transcript adds its own spacing.
	return strings.Trim(out, "\n")
}
