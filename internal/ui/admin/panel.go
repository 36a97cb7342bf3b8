// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// Panel is the list, form and delete prompt for one catalog. The catalog
// controller owns the form draft, the busy flags and the pending deletion;
// the panel owns only cursor, filter and input widgets.
type Panel[E model.Entity, D catalog.Draft] struct {
	ctrl   *catalog.Controller[E, D]
	schema Schema[E, D]
	theme  *styles.Theme
	keys   KeyMap

	cursor    int
	filter    textinput.Model
	filtering bool

	inputs []textinput.Model
	field  int
	notice string

	width  int
	height int
}

// NewPanel creates a panel over ctrl.
func NewPanel[E model.Entity, D catalog.Draft](ctrl *catalog.Controller[E, D], schema Schema[E, D], theme *styles.Theme) *Panel[E, D] {
	f := textinput.New()
	f.Prompt = "/ "
	f.Placeholder = "filter by name"
	f.CharLimit = 64

	return &Panel[E, D]{
		ctrl:   ctrl,
		schema: schema,
		theme:  theme,
		keys:   DefaultKeyMap(),
		filter: f,
	}
}

// Init loads the list.
func (p *Panel[E, D]) Init() tea.Cmd {
	return p.ctrl.Load()
}

// SetSize records the drawable area.
func (p *Panel[E, D]) SetSize(width, height int) {
	p.width, p.height = width, height
}

// Visible returns the filtered list in display order.
func (p *Panel[E, D]) Visible() []E {
	return p.ctrl.Filter(p.filter.Value())
}

// Selected returns the entity under the cursor.
func (p *Panel[E, D]) Selected() (E, bool) {
	items := p.Visible()
	if p.cursor < 0 || p.cursor >= len(items) {
		var zero E
		return zero, false
	}
	return items[p.cursor], true
}

// Editing reports whether the form is open.
func (p *Panel[E, D]) Editing() bool {
	return p.ctrl.Modal().Open
}

// Capturing reports whether the panel wants every key, so the parent
// must not treat letters as global shortcuts.
func (p *Panel[E, D]) Capturing() bool {
	_, confirming := p.ctrl.PendingDelete()
	return p.Editing() || p.filtering || confirming
}

// Busy describes in-flight work, or "".
func (p *Panel[E, D]) Busy() string {
	switch {
	case p.ctrl.Busy():
		return "saving " + p.ctrl.Noun()
	case p.ctrl.Testing():
		return "testing connection"
	}
	return ""
}

// Notice returns the last rejection shown under the list or form.
func (p *Panel[E, D]) Notice() string {
	return p.notice
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message. Results for other catalogs are ignored by the
// controller.
func (p *Panel[E, D]) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if km, ok := msg.(tea.KeyMsg); ok {
		cmd = p.handleKey(km)
	} else {
		cmd = p.ctrl.HandleMsg(msg)
	}
	p.syncForm()
	p.clampCursor()
	return cmd
}

func (p *Panel[E, D]) handleKey(msg tea.KeyMsg) tea.Cmd {
	if _, ok := p.ctrl.PendingDelete(); ok {
		switch {
		case key.Matches(msg, p.keys.Confirm):
			cmd, err := p.ctrl.ConfirmDelete()
			p.setNotice(err)
			return cmd
		case key.Matches(msg, p.keys.Cancel):
			p.ctrl.CancelDelete()
		}
		return nil
	}
	if p.Editing() {
		return p.handleFormKey(msg)
	}
	if p.filtering {
		return p.handleFilterKey(msg)
	}

	switch {
	case key.Matches(msg, p.keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, p.keys.Down):
		p.cursor++
	case key.Matches(msg, p.keys.New):
		p.ctrl.OpenCreate()
		p.openForm()
	case key.Matches(msg, p.keys.Edit):
		if e, ok := p.Selected(); ok {
			p.setNotice(p.ctrl.OpenEdit(e.EntityID()))
			p.openForm()
		}
	case key.Matches(msg, p.keys.Delete):
		if e, ok := p.Selected(); ok {
			p.setNotice(p.ctrl.RequestDelete(e.EntityID()))
		}
	case key.Matches(msg, p.keys.Test):
		if e, ok := p.Selected(); ok && p.ctrl.CanTest() {
			cmd, err := p.ctrl.TestConnection(e.EntityID())
			p.setNotice(err)
			return cmd
		}
	case key.Matches(msg, p.keys.Filter):
		p.filtering = true
		return p.filter.Focus()
	case key.Matches(msg, p.keys.Refresh):
		p.notice = ""
		return p.ctrl.Refresh()
	}
	return nil
}

func (p *Panel[E, D]) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		p.filter.SetValue("")
		fallthrough
	case tea.KeyEnter:
		p.filtering = false
		p.filter.Blur()
		return nil
	}
	var cmd tea.Cmd
	p.filter, cmd = p.filter.Update(msg)
	p.cursor = 0
	return cmd
}

// =============================================================================
// FORM
// =============================================================================

// openForm builds one input per field from the controller's draft.
func (p *Panel[E, D]) openForm() {
	if !p.Editing() {
		return
	}
	draft := p.ctrl.Modal().Draft
	p.inputs = make([]textinput.Model, len(p.schema.Fields))
	for i, f := range p.schema.Fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = f.Placeholder
		ti.CharLimit = 2000
		ti.SetValue(f.Get(draft))
		p.inputs[i] = ti
	}
	p.field = 0
	p.inputs[0].Focus()
	p.notice = ""
}

// syncForm drops the inputs once the controller has closed the form, which
// it does after a successful save.
func (p *Panel[E, D]) syncForm() {
	if !p.Editing() && p.inputs != nil {
		p.inputs = nil
		p.field = 0
	}
}

func (p *Panel[E, D]) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.Type == tea.KeyEsc:
		p.ctrl.CloseModal()
		p.notice = ""
		return nil
	case msg.Type == tea.KeyCtrlS:
		return p.submit()
	case msg.Type == tea.KeyEnter:
		if p.field == len(p.inputs)-1 {
			return p.submit()
		}
		p.focusField(p.field + 1)
		return nil
	case key.Matches(msg, p.keys.NextItem):
		p.focusField(p.field + 1)
		return nil
	case key.Matches(msg, p.keys.PrevItem):
		p.focusField(p.field - 1)
		return nil
	}

	var cmd tea.Cmd
	p.inputs[p.field], cmd = p.inputs[p.field].Update(msg)
	return cmd
}

func (p *Panel[E, D]) focusField(i int) {
	n := len(p.inputs)
	if n == 0 {
		return
	}
	i = (i + n) % n
	p.inputs[p.field].Blur()
	p.field = i
	p.inputs[i].Focus()
}

// submit writes every input back into the draft and saves it. A field that
// does not parse, or a draft that does not validate, keeps the form open
// without a request.
func (p *Panel[E, D]) submit() tea.Cmd {
	draft := p.ctrl.Modal().Draft
	for i, f := range p.schema.Fields {
		var err error
		if draft, err = f.Set(draft, p.inputs[i].Value()); err != nil {
			p.setNotice(err)
			p.focusField(i)
			return nil
		}
	}
	if err := p.ctrl.SetDraft(draft); err != nil {
		p.setNotice(err)
		return nil
	}
	cmd, err := p.ctrl.Submit()
	p.setNotice(err)
	return cmd
}

func (p *Panel[E, D]) setNotice(err error) {
	switch {
	case err == nil:
		p.notice = ""
	case errors.Is(err, catalog.ErrInFlight):
		p.notice = "Still saving the last change"
	case errors.Is(err, catalog.ErrNotSupported):
		p.notice = "Connection tests are not available here"
	default:
		p.notice = err.Error()
	}
}

func (p *Panel[E, D]) clampCursor() {
	n := len(p.Visible())
	if p.cursor >= n {
		p.cursor = n - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}
