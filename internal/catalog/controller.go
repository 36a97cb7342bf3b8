// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/notify"
)

// Errors returned when an operation is rejected before any network call.
var (
	ErrInFlight     = errors.New("another change is already in progress")
	ErrModalClosed  = errors.New("no form is open")
	ErrNotFound     = errors.New("entry not found")
	ErrDeclined     = errors.New("deletion not confirmed")
	ErrNoPending    = errors.New("no deletion awaiting confirmation")
	ErrNotSupported = errors.New("connection tests are not supported for this catalog")
)

// Connection test reports.
const (
	msgTestOK     = "Server connection successful!"
	msgTestFailed = "Server connection failed: "
	msgTestError  = "Failed to test server connection"
)

// Draft is a form shape that can check its own required fields.
type Draft interface {
	Validate() error
}

// Op is a mutation kind.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

// Past returns the participle used in success reports.
func (o Op) Past() string {
	switch o {
	case OpCreate:
		return "created"
	case OpUpdate:
		return "updated"
	default:
		return "deleted"
	}
}

// Verb returns the infinitive used in failure reports.
func (o Op) Verb() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return "delete"
	}
}

// Mode is what a submitted form does.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// Modal is the form state.
type Modal[D Draft] struct {
	Open   bool
	Mode   Mode
	EditID int64
	Draft  D
}

// Endpoints are the remote operations of one catalog. Test is nil when the
// catalog has no connection test.
type Endpoints[E model.Entity, D Draft] struct {
	List   func(ctx context.Context) ([]E, error)
	Create func(ctx context.Context, draft D) (*E, error)
	Update func(ctx context.Context, id int64, draft D) (*E, error)
	Delete func(ctx context.Context, id int64) error
	Test   func(ctx context.Context, id int64) (*model.TestResult, error)
}

// Config describes one catalog.
type Config[E model.Entity, D Draft] struct {
	Kind      cache.Kind
	Noun      string // "LLM model"
	Endpoints Endpoints[E, D]
	// NewDraft returns the default form shape.
	NewDraft func() D
	// FromEntity clones an entity into an edit draft.
	FromEntity func(E) D
}

// Options are the collaborators shared by every catalog instance.
type Options struct {
	Cache   *cache.Cache
	Sink    notify.Sink
	Logger  zerolog.Logger
	Context context.Context
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs the modal CRUD workflow for one catalog.
type Controller[E model.Entity, D Draft] struct {
	cfg    Config[E, D]
	cache  *cache.Cache
	sink   notify.Sink
	logger zerolog.Logger
	ctx    context.Context

	modal       Modal[D]
	busy        bool
	testing     bool
	testingID   int64
	confirmID   int64
	lastLoadErr error
	scope       uint64 // bumped on every cache.ScopeChangedMsg
}

// New creates a controller for cfg.
func New[E model.Entity, D Draft](cfg Config[E, D], opts Options) *Controller[E, D] {
	c := &Controller[E, D]{
		cfg:    cfg,
		cache:  opts.Cache,
		sink:   opts.Sink,
		logger: opts.Logger.With().Str("component", "catalog").Str("kind", string(cfg.Kind)).Logger(),
		ctx:    opts.Context,
	}
	if c.sink == nil {
		c.sink = notify.Discard
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	c.modal.Draft = cfg.NewDraft()
	return c
}

// Kind returns the cache kind of the catalog.
func (c *Controller[E, D]) Kind() cache.Kind { return c.cfg.Kind }

// Noun returns the singular display name of an entry.
func (c *Controller[E, D]) Noun() string { return c.cfg.Noun }

// Busy reports whether a create, update or delete is in flight.
func (c *Controller[E, D]) Busy() bool { return c.busy }

// Testing reports whether a connection test is in flight.
func (c *Controller[E, D]) Testing() bool { return c.testing }

// TestingID returns the entry being tested, or 0.
func (c *Controller[E, D]) TestingID() int64 { return c.testingID }

// CanTest reports whether the catalog supports connection tests.
func (c *Controller[E, D]) CanTest() bool { return c.cfg.Endpoints.Test != nil }

// LoadErr returns the error of the last list load.
func (c *Controller[E, D]) LoadErr() error { return c.lastLoadErr }

// =============================================================================
// LIST
// =============================================================================

func (c *Controller[E, D]) listKey() cache.Key { return cache.ListKey(c.cfg.Kind) }

// Load fetches the list, reusing the cached value while it is fresh.
func (c *Controller[E, D]) Load() tea.Cmd {
	ctx, store, key, list, kind := c.ctx, c.cache, c.listKey(), c.cfg.Endpoints.List, c.cfg.Kind
	return func() tea.Msg {
		_, err := cache.Fetch(ctx, store, key, func(ctx context.Context) ([]E, error) {
			items, err := list(ctx)
			if items == nil && err == nil {
				items = []E{}
			}
			return items, err
		})
		return LoadedMsg{Kind: kind, Err: err}
	}
}

// Refresh marks the list stale and refetches it.
func (c *Controller[E, D]) Refresh() tea.Cmd {
	c.cache.MarkStale(c.cfg.Kind)
	return c.Load()
}

// Items returns the cached list, inactive entries included.
func (c *Controller[E, D]) Items() []E {
	items, _ := cache.Peek[[]E](c.cache, c.listKey())
	return items
}

// Active returns the cached entries with is_active set.
func (c *Controller[E, D]) Active() []E {
	return model.ActiveOnly(c.Items())
}

// Find returns the cached entry with the given id.
func (c *Controller[E, D]) Find(id int64) (E, bool) {
	return model.FindEntity(c.Items(), id)
}

// Filter returns the entries whose name contains query, ignoring case.
func (c *Controller[E, D]) Filter(query string) []E {
	items := c.Items()
	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}
	fold := cases.Fold()
	needle := fold.String(query)
	out := make([]E, 0, len(items))
	for _, e := range items {
		if strings.Contains(fold.String(e.EntityName()), needle) {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// MODAL
// =============================================================================

// Modal returns the form state.
func (c *Controller[E, D]) Modal() Modal[D] { return c.modal }

// OpenCreate opens an empty form.
func (c *Controller[E, D]) OpenCreate() {
	c.modal = Modal[D]{Open: true, Mode: ModeCreate, Draft: c.cfg.NewDraft()}
}

// OpenEdit opens the form with a copy of entry id. Edits to the draft never
// touch the cached entry.
func (c *Controller[E, D]) OpenEdit(id int64) error {
	e, ok := c.Find(id)
	if !ok {
		return fmt.Errorf("%s %d: %w", c.cfg.Noun, id, ErrNotFound)
	}
	c.modal = Modal[D]{Open: true, Mode: ModeEdit, EditID: id, Draft: c.cfg.FromEntity(e)}
	return nil
}

// CloseModal closes the form and resets the draft.
func (c *Controller[E, D]) CloseModal() {
	c.modal = Modal[D]{Draft: c.cfg.NewDraft()}
}

// SetDraft replaces the working draft of the open form.
func (c *Controller[E, D]) SetDraft(d D) error {
	if !c.modal.Open {
		return ErrModalClosed
	}
	c.modal.Draft = d
	return nil
}

// Submit sends the open form: a create in ModeCreate, an update of EditID
// in ModeEdit.
func (c *Controller[E, D]) Submit() (tea.Cmd, error) {
	if !c.modal.Open {
		return nil, ErrModalClosed
	}
	if c.modal.Mode == ModeEdit {
		return c.Update(c.modal.EditID, c.modal.Draft)
	}
	return c.Create(c.modal.Draft)
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create submits a new entry.
func (c *Controller[E, D]) Create(draft D) (tea.Cmd, error) {
	if err := c.begin(draft); err != nil {
		return nil, err
	}
	ctx, create, kind, scope := c.ctx, c.cfg.Endpoints.Create, c.cfg.Kind, c.scope
	return func() tea.Msg {
		e, err := create(ctx, draft)
		return MutatedMsg[E]{Kind: kind, Op: OpCreate, Entity: e, Err: err, scope: scope}
	}, nil
}

// Update submits changes to entry id.
func (c *Controller[E, D]) Update(id int64, patch D) (tea.Cmd, error) {
	if err := c.begin(patch); err != nil {
		return nil, err
	}
	ctx, update, kind, scope := c.ctx, c.cfg.Endpoints.Update, c.cfg.Kind, c.scope
	return func() tea.Msg {
		e, err := update(ctx, id, patch)
		return MutatedMsg[E]{Kind: kind, Op: OpUpdate, ID: id, Entity: e, Err: err, scope: scope}
	}, nil
}

func (c *Controller[E, D]) begin(d D) error {
	if c.busy {
		return ErrInFlight
	}
	if err := d.Validate(); err != nil {
		return err
	}
	c.busy = true
	return nil
}

// DeletePrompt is the confirmation question for deleting id.
func (c *Controller[E, D]) DeletePrompt(id int64) string {
	if e, ok := c.Find(id); ok {
		return fmt.Sprintf("Are you sure you want to delete %s %q?", c.cfg.Noun, e.EntityName())
	}
	return fmt.Sprintf("Are you sure you want to delete this %s?", c.cfg.Noun)
}

// Delete asks confirm and deletes id only if it agrees. Declining is a
// no-op reported as ErrDeclined.
func (c *Controller[E, D]) Delete(id int64, confirm func(prompt string) bool) (tea.Cmd, error) {
	if c.busy {
		return nil, ErrInFlight
	}
	if confirm == nil || !confirm(c.DeletePrompt(id)) {
		return nil, ErrDeclined
	}
	return c.startDelete(id), nil
}

// RequestDelete stages id for deletion; the UI then shows its prompt and
// calls ConfirmDelete or CancelDelete.
func (c *Controller[E, D]) RequestDelete(id int64) error {
	if c.busy {
		return ErrInFlight
	}
	if _, ok := c.Find(id); !ok {
		return fmt.Errorf("%s %d: %w", c.cfg.Noun, id, ErrNotFound)
	}
	c.confirmID = id
	return nil
}

// PendingDelete returns the entry awaiting confirmation.
func (c *Controller[E, D]) PendingDelete() (int64, bool) {
	return c.confirmID, c.confirmID != 0
}

// ConfirmDelete deletes the staged entry.
func (c *Controller[E, D]) ConfirmDelete() (tea.Cmd, error) {
	id := c.confirmID
	if id == 0 {
		return nil, ErrNoPending
	}
	if c.busy {
		return nil, ErrInFlight
	}
	c.confirmID = 0
	return c.startDelete(id), nil
}

// CancelDelete drops the staged entry.
func (c *Controller[E, D]) CancelDelete() {
	c.confirmID = 0
}

func (c *Controller[E, D]) startDelete(id int64) tea.Cmd {
	c.busy = true
	ctx, del, kind, scope := c.ctx, c.cfg.Endpoints.Delete, c.cfg.Kind, c.scope
	return func() tea.Msg {
		return MutatedMsg[E]{Kind: kind, Op: OpDelete, ID: id, Err: del(ctx, id), scope: scope}
	}
}

// TestConnection checks entry id's connection. The result is reported to
// the sink; the catalog is never modified.
func (c *Controller[E, D]) TestConnection(id int64) (tea.Cmd, error) {
	test := c.cfg.Endpoints.Test
	if test == nil {
		return nil, ErrNotSupported
	}
	if c.testing {
		return nil, ErrInFlight
	}
	c.testing = true
	c.testingID = id
	ctx, kind, scope := c.ctx, c.cfg.Kind, c.scope
	return func() tea.Msg {
		res, err := test(ctx, id)
		return TestedMsg{Kind: kind, ID: id, Result: res, Err: err, scope: scope}
	}, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// HandleMsg applies a result message addressed to this catalog and
// returns any follow-up command. Call it from the Update loop.
func (c *Controller[E, D]) HandleMsg(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case MutatedMsg[E]:
		if m.Kind == c.cfg.Kind && m.scope == c.scope {
			return c.handleMutated(m)
		}
	case TestedMsg:
		if m.Kind == c.cfg.Kind && m.scope == c.scope {
			c.handleTested(m)
		}
	case LoadedMsg:
		if m.Kind == c.cfg.Kind {
			c.lastLoadErr = m.Err
		}
	case cache.ScopeChangedMsg:
		return c.handleScopeChanged()
	}
	return nil
}

// handleScopeChanged drops the form, the delete prompt and the in-flight
// flags, and reloads the list for the new identity. Results of requests
// issued before the change are ignored.
func (c *Controller[E, D]) handleScopeChanged() tea.Cmd {
	c.scope++
	c.CloseModal()
	c.confirmID = 0
	c.busy = false
	c.testing = false
	c.testingID = 0
	c.lastLoadErr = nil
	c.logger.Debug().Msg("scope changed, reloading")
	return c.Load()
}

func (c *Controller[E, D]) handleMutated(m MutatedMsg[E]) tea.Cmd {
	// RELIABILITY: The flag clears on every settle so one failure can
	// never wedge the form.
	c.busy = false

	if m.Err == nil && m.Op != OpDelete && m.Entity == nil {
		m.Err = errors.New("empty response")
	}
	if m.Err != nil {
		c.logger.Warn().Err(m.Err).Str("op", m.Op.Verb()).Int64("id", m.ID).Msg("catalog change failed")
		if !errors.Is(m.Err, context.Canceled) {
			c.sink.Error(api.DetailOr(m.Err, fmt.Sprintf("Failed to %s %s", m.Op.Verb(), c.cfg.Noun)))
		}
		return nil
	}

	key := c.listKey()
	switch m.Op {
	case OpDelete:
		cache.Mutate(c.cache, key, func(list []E) []E { return model.RemoveEntity(list, m.ID) })
		c.cache.Evict(cache.ItemKey(c.cfg.Kind, m.ID))
		if c.modal.Open && c.modal.Mode == ModeEdit && c.modal.EditID == m.ID {
			c.CloseModal()
		}
		if c.confirmID == m.ID {
			c.confirmID = 0
		}
	default:
		e := *m.Entity
		cache.Mutate(c.cache, key, func(list []E) []E { return model.UpsertEntity(list, e) })
		cache.Set(c.cache, cache.ItemKey(c.cfg.Kind, e.EntityID()), e)
		c.CloseModal()
	}

	c.sink.Success(fmt.Sprintf("%s %s successfully!", c.cfg.Noun, m.Op.Past()))
	return c.cache.Invalidate(c.cfg.Kind, 0)
}

func (c *Controller[E, D]) handleTested(m TestedMsg) {
	c.testing = false
	c.testingID = 0

	switch {
	case m.Err != nil:
		c.logger.Warn().Err(m.Err).Int64("id", m.ID).Msg("connection test request failed")
		if !errors.Is(m.Err, context.Canceled) {
			c.sink.Error(msgTestError)
		}
	case m.Result == nil:
		c.sink.Error(msgTestError)
	case m.Result.Success:
		c.sink.Success(msgTestOK)
	default:
		c.sink.Error(msgTestFailed + m.Result.Error)
	}
}
