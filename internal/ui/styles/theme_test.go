// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestNewTheme_NoColor(t *testing.T) {
	theme := NewTheme(Options{NoColor: true, Mode: "light"})
	assert.Equal(t, termenv.Ascii, theme.ColorProfile)
	assert.False(t, theme.IsDark)

	out := theme.Error.Render("boom")
	assert.NotContains(t, out, "\x1b[", "ascii profile should emit no escape codes")
}

func TestNewTheme_EnvNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	theme := NewTheme(Options{Mode: "dark"})
	assert.Equal(t, termenv.Ascii, theme.ColorProfile)
	assert.True(t, theme.IsDark)
}

func TestTheme_Layout(t *testing.T) {
	theme := NewTheme(Options{NoColor: true, Mode: "dark"})

	tests := []struct {
		width   int
		layout  LayoutMode
		sidebar int
	}{
		{40, LayoutNarrow, 0},
		{80, LayoutMedium, 22},
		{140, LayoutWide, 30},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 40)
		assert.Equal(t, tt.layout, theme.Layout(), "width %d", tt.width)
		assert.Equal(t, tt.sidebar, theme.SidebarWidth(), "width %d", tt.width)
	}
}

func TestRenderStatus_HasIndicators(t *testing.T) {
	NewTheme(Options{NoColor: true, Mode: "dark"})
	assert.True(t, strings.HasPrefix(RenderStatus(true, "saved"), StatusIndicators.Success))
	assert.True(t, strings.HasPrefix(RenderStatus(false, "failed"), StatusIndicators.Error))
	assert.Contains(t, RenderInfo("note"), StatusIndicators.Info)
}
