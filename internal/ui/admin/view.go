// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// statusWidth fits "[OK] active" and "testing...".
const statusWidth = 12

// View renders the panel, with the form or delete prompt on top when open.
func (p *Panel[E, D]) View() string {
	if id, ok := p.ctrl.PendingDelete(); ok {
		prompt := components.RenderConfirm(p.theme, p.ctrl.DeletePrompt(id), p.width)
		return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, prompt)
	}
	if p.Editing() && p.inputs != nil {
		return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, p.renderForm())
	}
	return p.renderList()
}

// =============================================================================
// LIST
// =============================================================================

func (p *Panel[E, D]) renderList() string {
	var b strings.Builder

	all := p.ctrl.Items()
	items := p.Visible()
	title := p.theme.HeaderTitle.Render(p.schema.Title)
	title += p.theme.Muted.Render(fmt.Sprintf(" (%d)", len(all)))
	b.WriteString(title + "\n")
	if p.filtering || p.filter.Value() != "" {
		b.WriteString(p.filter.View() + "\n")
	}
	b.WriteString("\n")

	switch {
	case len(all) == 0 && p.ctrl.LoadErr() != nil:
		b.WriteString(p.theme.Error.Render("Could not load " + strings.ToLower(p.schema.Title) + ". Press r to retry."))
	case len(all) == 0:
		b.WriteString(p.theme.Muted.Render("Nothing here yet. Press n to add one."))
	case len(items) == 0:
		b.WriteString(p.theme.Muted.Render(fmt.Sprintf("No matches for %q.", p.filter.Value())))
	default:
		b.WriteString(p.renderHeader() + "\n")
		for i, e := range items {
			b.WriteString(p.renderRow(e, i == p.cursor) + "\n")
		}
	}

	if p.notice != "" {
		b.WriteString("\n" + p.theme.Warning.Render(p.notice))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Panel[E, D]) renderHeader() string {
	cells := make([]string, 0, len(p.schema.Columns)+1)
	for _, c := range p.schema.Columns {
		cells = append(cells, util.PadWidth(c.Title, p.columnWidth(c.Width)))
	}
	cells = append(cells, "Status")
	return p.theme.Muted.Render("  " + strings.Join(cells, " "))
}

func (p *Panel[E, D]) renderRow(e E, selected bool) string {
	cells := make([]string, 0, len(p.schema.Columns))
	for _, c := range p.schema.Columns {
		cells = append(cells, util.PadWidth(c.Value(e), p.columnWidth(c.Width)))
	}

	marker, style := "  ", p.theme.Row
	if selected {
		marker, style = "> ", p.theme.RowSelected
	}
	return style.Render(marker+strings.Join(cells, " ")+" ") + p.renderStatus(e)
}

func (p *Panel[E, D]) renderStatus(e E) string {
	if p.ctrl.Testing() && p.ctrl.TestingID() == e.EntityID() {
		return p.theme.Warning.Render("testing...")
	}
	if e.Active() {
		return p.theme.Active.Render(styles.StatusIndicators.Success + " active")
	}
	return p.theme.Inactive.Render(styles.StatusIndicators.Pending + " inactive")
}

// columnWidth shrinks columns proportionally when the panel is narrower
// than the schema's preferred widths.
func (p *Panel[E, D]) columnWidth(w int) int {
	total := 0
	for _, c := range p.schema.Columns {
		total += c.Width + 1
	}
	avail := p.width - 2 - statusWidth
	if p.width == 0 || avail >= total {
		return w
	}
	if avail < len(p.schema.Columns)*4 {
		return 4
	}
	return w * avail / total
}

// =============================================================================
// FORM
// =============================================================================

func (p *Panel[E, D]) renderForm() string {
	modal := p.ctrl.Modal()
	verb := "New "
	if modal.Mode == catalog.ModeEdit {
		verb = "Edit "
	}

	var b strings.Builder
	b.WriteString(p.theme.ModalTitle.Render(verb+p.ctrl.Noun()) + "\n")

	var preview string
	for i, f := range p.schema.Fields {
		label := p.theme.FieldLabel
		if i == p.field {
			label = p.theme.FieldFocus
		}
		b.WriteString(label.Render(f.Label) + p.inputs[i].View() + "\n")
		if f.JSON {
			preview = p.renderJSONPreview(p.inputs[i].Value())
		}
	}
	if preview != "" {
		b.WriteString("\n" + preview + "\n")
	}

	b.WriteString("\n")
	switch {
	case p.ctrl.Busy():
		b.WriteString(p.theme.Warning.Render("Saving..."))
	case p.notice != "":
		b.WriteString(p.theme.Error.Render(p.notice))
	default:
		b.WriteString(p.theme.Help.Render("[tab] next field  [C-s] save  [esc] cancel"))
	}

	w := p.width - 8
	if w > 72 {
		w = 72
	}
	if w < 30 {
		w = 30
	}
	return p.theme.Modal.Width(w).Render(b.String())
}

// renderJSONPreview pretty-prints a configuration value with syntax
// highlighting, or flags it when it does not parse.
func (p *Panel[E, D]) renderJSONPreview(text string) string {
	cfg, err := model.ParseConfiguration(text)
	if err != nil {
		return p.theme.Error.Render("configuration is not a JSON object")
	}
	if cfg == nil {
		return ""
	}
	return components.HighlightJSON(model.FormatConfiguration(cfg), p.theme.ColorProfile)
}
