// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/notify"
)

// Errors returned when an operation is rejected before any network call.
var (
	ErrEmptyInput     = errors.New("message is empty")
	ErrNoChatSelected = errors.New("no chat selected")
	ErrInFlight       = errors.New("operation already in progress")
)

// User-facing reports.
const (
	msgSendFailed   = "Failed to send message"
	msgCreateFailed = "Failed to create new chat"
	msgCreated      = "Chat created successfully!"
	msgDeleteFailed = "Failed to delete chat"
	msgDeleted      = "Chat deleted successfully!"
)

// API is the backend surface the controller writes through. *api.Client
// satisfies it.
type API interface {
	CreateChat(ctx context.Context, draft model.ChatDraft) (*model.Chat, error)
	DeleteChat(ctx context.Context, id int64) error
	SendMessage(ctx context.Context, chatID int64, content string) (*model.SendResult, error)
}

// State is the selection state.
type State int

const (
	// NoChats means nothing is selected, either because the user has no
	// chats or because the selected chat was just deleted.
	NoChats State = iota
	// HasChats means exactly one chat is selected.
	HasChats
)

func (s State) String() string {
	if s == HasChats {
		return "has-chats"
	}
	return "no-chats"
}

// Options configures a Controller.
type Options struct {
	API       API
	Resources *cache.Resources
	Sink      notify.Sink
	Logger    zerolog.Logger

	// IDs issues local message ids. Defaults to a fresh source.
	IDs *model.LocalIDs
	Now func() time.Time

	// DefaultTitle names chats created without a title.
	DefaultTitle string
	// DefaultModelID is preferred for new chats while it is active.
	DefaultModelID int64

	// Context is the parent of every remote call. Reset and Close cancel
	// the controller's child of it.
	Context context.Context
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the chat session state machine.
type Controller struct {
	api    API
	res    *cache.Resources
	sink   notify.Sink
	logger zerolog.Logger
	ids    *model.LocalIDs
	now    func() time.Time

	defaultTitle   string
	defaultModelID int64

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	selected    int64
	selectToken uint64
	loading     bool
	loadErr     error
	discarded   uint64

	input    string
	sending  map[int64]bool
	pending  map[int64][]model.Message
	creating bool
	deleting map[int64]bool
}

// New creates a controller in the NoChats state.
func New(opts Options) *Controller {
	c := &Controller{
		api:            opts.API,
		res:            opts.Resources,
		sink:           opts.Sink,
		logger:         opts.Logger.With().Str("component", "session").Logger(),
		ids:            opts.IDs,
		now:            opts.Now,
		defaultTitle:   opts.DefaultTitle,
		defaultModelID: opts.DefaultModelID,
		parent:         opts.Context,
	}
	if c.sink == nil {
		c.sink = notify.Discard
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.ids == nil {
		c.ids = model.NewLocalIDs(c.now)
	}
	if c.defaultTitle == "" {
		c.defaultTitle = model.DefaultChatTitle
	}
	if c.parent == nil {
		c.parent = context.Background()
	}
	c.resetState()
	return c
}

func (c *Controller) resetState() {
	c.ctx, c.cancel = context.WithCancel(c.parent)
	c.selected = 0
	c.selectToken++
	c.loading = false
	c.loadErr = nil
	c.input = ""
	c.sending = make(map[int64]bool)
	c.pending = make(map[int64][]model.Message)
	c.creating = false
	c.deleting = make(map[int64]bool)
}

// Init fetches the chat list and the new-chat catalog.
func (c *Controller) Init() tea.Cmd {
	return tea.Batch(c.RefreshChats(), c.LoadCatalog())
}

// Reset tears the session down on logout: in-flight calls are cancelled,
// their late results are ignored, and cached data is dropped.
func (c *Controller) Reset() {
	c.cancel()
	c.res.Cache().Reset()
	c.resetState()
	c.logger.Debug().Msg("session reset")
}

// SwitchIdentity tears the session down like Reset, moves the cache to the
// snapshot scope of the new backend address or token, and reloads. Nothing
// loaded under the previous identity stays visible or selectable.
func (c *Controller) SwitchIdentity(scope string) tea.Cmd {
	c.cancel()
	c.res.Cache().SetScope(scope)
	c.resetState()
	c.logger.Info().Msg("identity changed, reloading session")
	return c.Init()
}

// Close cancels every in-flight call.
func (c *Controller) Close() {
	c.cancel()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the selection state.
func (c *Controller) State() State {
	if c.selected == 0 {
		return NoChats
	}
	return HasChats
}

// Selected returns the selected chat id, or 0.
func (c *Controller) Selected() int64 {
	return c.selected
}

// SelectedChat returns the selected chat from the cached list.
func (c *Controller) SelectedChat() (model.Chat, bool) {
	if c.selected == 0 {
		return model.Chat{}, false
	}
	return model.FindChat(c.Chats(), c.selected)
}

// Chats returns the cached chat list, newest first.
func (c *Controller) Chats() []model.Chat {
	chats, _ := c.res.PeekChats()
	return chats
}

// Messages returns the selected chat's confirmed history followed by any
// pending messages. The slice is a copy.
func (c *Controller) Messages() []model.Message {
	if c.selected == 0 {
		return nil
	}
	list, _ := c.res.PeekMessages(c.selected)
	return model.AppendMessages(list, c.pending[c.selected]...)
}

// Loading reports whether the selected chat's messages are being fetched.
func (c *Controller) Loading() bool { return c.loading }

// LoadErr returns the error from the selected chat's last message fetch.
func (c *Controller) LoadErr() error { return c.loadErr }

// Input returns the composer text.
func (c *Controller) Input() string { return c.input }

// SetInput replaces the composer text.
func (c *Controller) SetInput(s string) { c.input = s }

// Sending reports whether a send is in flight for chatID.
func (c *Controller) Sending(chatID int64) bool { return c.sending[chatID] }

// Creating reports whether a chat creation is in flight.
func (c *Controller) Creating() bool { return c.creating }

// Deleting reports whether a deletion of chatID is in flight.
func (c *Controller) Deleting(chatID int64) bool { return c.deleting[chatID] }

// Discarded counts message fetches whose results were ignored because the
// selection had moved on.
func (c *Controller) Discarded() uint64 { return c.discarded }

// =============================================================================
// UPDATE
// =============================================================================

// Update applies a result message and returns any follow-up command.
// Messages the controller does not own are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case ChatsLoadedMsg:
		return c.handleChatsLoaded(m)
	case MessagesLoadedMsg:
		c.handleMessagesLoaded(m)
	case MessageSentMsg:
		c.handleSent(m)
	case ChatCreatedMsg:
		c.handleCreated(m)
	case ChatDeletedMsg:
		return c.handleDeleted(m)
	case cache.ScopeChangedMsg:
		return c.SwitchIdentity(m.Scope)
	}
	return nil
}

// =============================================================================
// SELECTION
// =============================================================================

// RefreshChats refetches the chat list. The result may change the
// selection: the first chat is selected when nothing is, or when the
// selected chat is gone.
func (c *Controller) RefreshChats() tea.Cmd {
	c.res.Cache().MarkStale(cache.KindChats)
	ctx, res := c.ctx, c.res
	return func() tea.Msg {
		chats, err := res.Chats(ctx)
		return ChatsLoadedMsg{Chats: chats, Err: err}
	}
}

func (c *Controller) handleChatsLoaded(m ChatsLoadedMsg) tea.Cmd {
	if m.Err != nil {
		// Reported by the cache; the previous list and selection stand.
		return nil
	}
	// The cache is the current truth; it may hold local writes newer than
	// this response.
	chats, ok := c.res.PeekChats()
	if !ok {
		// The cache was reset after this fetch; the list belongs to the
		// previous session.
		return nil
	}

	if c.selected != 0 {
		if _, found := model.FindChat(chats, c.selected); found {
			return nil
		}
		c.logger.Debug().Int64("chat_id", c.selected).Msg("selected chat no longer listed")
	}
	if len(chats) == 0 {
		c.clearSelection()
		return nil
	}
	return c.Select(chats[0].ID)
}

// Select makes id the selected chat immediately and fetches its messages.
// A fetch issued for an earlier selection is left to finish; its result is
// discarded.
func (c *Controller) Select(id int64) tea.Cmd {
	if id <= 0 {
		return nil
	}
	c.selected = id
	c.selectToken++
	token := c.selectToken
	c.loading = true
	c.loadErr = nil

	c.res.Cache().MarkStale(cache.KindMessages, id)
	ctx, res := c.ctx, c.res
	return func() tea.Msg {
		_, err := res.Messages(ctx, id)
		return MessagesLoadedMsg{ChatID: id, Token: token, Err: err}
	}
}

func (c *Controller) handleMessagesLoaded(m MessagesLoadedMsg) {
	if m.ChatID != c.selected || m.Token != c.selectToken {
		c.discarded++
		c.logger.Debug().
			Int64("chat_id", m.ChatID).
			Uint64("token", m.Token).
			Msg("discarded message fetch for previous selection")
		return
	}
	c.loading = false
	c.loadErr = m.Err
}

func (c *Controller) clearSelection() {
	c.selected = 0
	c.selectToken++
	c.loading = false
	c.loadErr = nil
}

// =============================================================================
// SEND
// =============================================================================

// Send posts the composer text to the selected chat. The pending message is
// visible as soon as Send returns. Rejections make no network call and
// leave the composer untouched.
func (c *Controller) Send() (tea.Cmd, error) {
	content := c.input
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyInput
	}
	chatID := c.selected
	if chatID == 0 {
		return nil, ErrNoChatSelected
	}
	if c.sending[chatID] {
		return nil, ErrInFlight
	}

	c.input = ""
	c.sending[chatID] = true
	localID := c.ids.Next()
	c.pending[chatID] = append(c.pending[chatID], model.NewPendingUserMessage(chatID, localID, content, c.now()))

	c.logger.Debug().Int64("chat_id", chatID).Str("local_id", localID).Msg("sending message")

	ctx, backend := c.ctx, c.api
	return func() tea.Msg {
		res, err := backend.SendMessage(ctx, chatID, content)
		return MessageSentMsg{ChatID: chatID, LocalID: localID, Content: content, Result: res, Err: err}
	}, nil
}

func (c *Controller) handleSent(m MessageSentMsg) {
	delete(c.sending, m.ChatID)
	pending, found := c.takePending(m.ChatID, m.LocalID)

	err := m.Err
	if err == nil && m.Result == nil {
		err = errors.New("empty send result")
	}
	if err != nil {
		c.logger.Warn().Err(err).Int64("chat_id", m.ChatID).Str("local_id", m.LocalID).Msg("send failed")
		if !found {
			// Reset already discarded this send.
			return
		}
		if c.input == "" {
			c.input = m.Content
		}
		if !errors.Is(err, context.Canceled) {
			c.sink.Error(msgSendFailed)
		}
		return
	}
	if !found {
		return
	}

	now := c.now()
	user := pending.Confirmed()
	assistant := m.Result.AssistantMessage(m.ChatID, now)
	cache.Mutate(c.res.Cache(), cache.MessagesKey(m.ChatID), func(list []model.Message) []model.Message {
		// A refetch that already carries the reply carries the prompt too.
		if model.HasMessage(list, assistant.Key()) {
			return list
		}
		// A refetch that landed between the backend storing the prompt and
		// the reply holds the server's copy of the prompt.
		if n := len(list); n > 0 {
			last := list[n-1]
			if last.ID != 0 && last.Role == model.RoleUser && last.Content == user.Content {
				return model.AppendMessages(list, assistant)
			}
		}
		return model.AppendMessages(list, user, assistant)
	})
}

func (c *Controller) takePending(chatID int64, localID string) (model.Message, bool) {
	list := c.pending[chatID]
	for i, m := range list {
		if m.LocalID != localID {
			continue
		}
		rest := append(append([]model.Message(nil), list[:i]...), list[i+1:]...)
		if len(rest) == 0 {
			delete(c.pending, chatID)
		} else {
			c.pending[chatID] = rest
		}
		return m, true
	}
	return model.Message{}, false
}

// =============================================================================
// CREATE / DELETE
// =============================================================================

// NewChat creates a chat with title and the default model.
func (c *Controller) NewChat(title string) (tea.Cmd, error) {
	return c.CreateChat(model.ChatDraft{Title: title})
}

// CreateChat creates a chat. A draft without a model gets the default one.
// On success the chat is prepended to the cached list and selected; the
// list is not refetched.
func (c *Controller) CreateChat(draft model.ChatDraft) (tea.Cmd, error) {
	if c.creating {
		return nil, ErrInFlight
	}
	if strings.TrimSpace(draft.Title) == "" {
		draft.Title = c.defaultTitle
	}
	draft = draft.Normalize()
	if draft.LLMModelID == nil {
		draft.LLMModelID = model.IDRef(c.defaultModel())
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	c.creating = true
	ctx, backend := c.ctx, c.api
	return func() tea.Msg {
		chat, err := backend.CreateChat(ctx, draft)
		return ChatCreatedMsg{Chat: chat, Err: err}
	}, nil
}

// defaultModel prefers the configured model while it is active (or the
// catalog is unknown), then the first active model.
func (c *Controller) defaultModel() int64 {
	models, ok := c.res.PeekModels()
	if c.defaultModelID != 0 {
		if !ok {
			return c.defaultModelID
		}
		if m, found := model.FindEntity(models, c.defaultModelID); found && m.Active() {
			return c.defaultModelID
		}
	}
	if active := model.ActiveOnly(models); len(active) > 0 {
		return active[0].ID
	}
	return 0
}

func (c *Controller) handleCreated(m ChatCreatedMsg) {
	if !c.creating {
		return
	}
	c.creating = false
	if m.Err != nil || m.Chat == nil {
		if !errors.Is(m.Err, context.Canceled) {
			c.logger.Warn().Err(m.Err).Msg("chat creation failed")
			c.sink.Error(msgCreateFailed)
		}
		return
	}

	chat := *m.Chat
	history := chat.Messages
	chat.Messages = nil
	cache.Mutate(c.res.Cache(), cache.ListKey(cache.KindChats), func(list []model.Chat) []model.Chat {
		return model.PrependChat(list, chat)
	})
	if history == nil {
		history = []model.Message{}
	}
	cache.Set(c.res.Cache(), cache.MessagesKey(chat.ID), history)

	c.selected = chat.ID
	c.selectToken++
	c.loading = false
	c.loadErr = nil
	c.sink.Success(msgCreated)
}

// DeleteChat deletes chat id, or the selected chat when id is 0.
func (c *Controller) DeleteChat(id int64) (tea.Cmd, error) {
	if id == 0 {
		id = c.selected
	}
	if id == 0 {
		return nil, ErrNoChatSelected
	}
	if c.deleting[id] {
		return nil, ErrInFlight
	}

	c.deleting[id] = true
	ctx, backend := c.ctx, c.api
	return func() tea.Msg {
		return ChatDeletedMsg{ChatID: id, Err: backend.DeleteChat(ctx, id)}
	}, nil
}

func (c *Controller) handleDeleted(m ChatDeletedMsg) tea.Cmd {
	if !c.deleting[m.ChatID] {
		return nil
	}
	delete(c.deleting, m.ChatID)
	if m.Err != nil {
		if !errors.Is(m.Err, context.Canceled) {
			c.logger.Warn().Err(m.Err).Int64("chat_id", m.ChatID).Msg("chat deletion failed")
			c.sink.Error(api.DetailOr(m.Err, msgDeleteFailed))
		}
		return nil
	}

	store := c.res.Cache()
	cache.Mutate(store, cache.ListKey(cache.KindChats), func(list []model.Chat) []model.Chat {
		return model.RemoveChat(list, m.ChatID)
	})
	store.Evict(cache.MessagesKey(m.ChatID))
	store.Evict(cache.ItemKey(cache.KindChats, m.ChatID))
	delete(c.pending, m.ChatID)
	delete(c.sending, m.ChatID)
	c.sink.Success(msgDeleted)

	if c.selected != m.ChatID {
		return nil
	}
	c.clearSelection()
	return c.RefreshChats()
}

// =============================================================================
// NEW-CHAT CATALOG
// =============================================================================

// LoadCatalog fetches the model and server lists offered when creating a
// chat.
func (c *Controller) LoadCatalog() tea.Cmd {
	ctx, res := c.ctx, c.res
	return func() tea.Msg {
		_, modelsErr := res.Models(ctx)
		_, serversErr := res.Servers(ctx)
		return CatalogLoadedMsg{Err: errors.Join(modelsErr, serversErr)}
	}
}

// SelectableModels returns the active models offered for a new chat.
func (c *Controller) SelectableModels() []model.LLMModel {
	models, _ := c.res.PeekModels()
	return model.ActiveOnly(models)
}

// SelectableServers returns the active servers offered for a new chat.
func (c *Controller) SelectableServers() []model.MCPServer {
	servers, _ := c.res.PeekServers()
	return model.ActiveOnly(servers)
}
