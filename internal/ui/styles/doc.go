// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the parley TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Status rendering always pairs a color with an ASCII indicator
([OK], [X], [!], [i]) so nothing depends on color alone.

# Color System (colors.go)

  - Purple: Assistant messages and selections
  - Cyan: Brand color, focus and user highlights
  - Emerald: Success states
  - Amber: Pending and in-flight states
  - Rose: Errors and destructive actions

# Theme System (theme.go)

The Theme struct holds every lipgloss style the views use. NewTheme detects
the terminal profile with termenv; NO_COLOR, or the ui.no_color config key,
forces the ASCII profile:

	theme := styles.NewTheme(styles.Options{NoColor: cfg.UI.NoColor, Mode: cfg.UI.Theme})
	theme.SetSize(width, height)
	if theme.Layout() == styles.LayoutNarrow {
		// hide the sidebar
	}
*/
package styles
