// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/model"
)

// API is the subset of the backend client the resource facade reads from.
// *api.Client satisfies it.
type API interface {
	ListChats(ctx context.Context) ([]model.Chat, error)
	GetChat(ctx context.Context, id int64) (*model.Chat, error)
	ListMessages(ctx context.Context, chatID int64) ([]model.Message, error)
	ListLLMModels(ctx context.Context) ([]model.LLMModel, error)
	GetLLMModel(ctx context.Context, id int64) (*model.LLMModel, error)
	ListMCPServers(ctx context.Context) ([]model.MCPServer, error)
	GetMCPServer(ctx context.Context, id int64) (*model.MCPServer, error)
}

// Resources binds each backend resource to its cache key so callers never
// build keys or loaders by hand.
type Resources struct {
	api   API
	cache *Cache
}

// NewResources wraps c with loaders backed by api.
func NewResources(api API, c *Cache) *Resources {
	return &Resources{api: api, cache: c}
}

// Cache returns the underlying cache.
func (r *Resources) Cache() *Cache {
	return r.cache
}

// Chats returns the chat list.
func (r *Resources) Chats(ctx context.Context) ([]model.Chat, error) {
	return Fetch(ctx, r.cache, ListKey(KindChats), func(ctx context.Context) ([]model.Chat, error) {
		chats, err := r.api.ListChats(ctx)
		if chats == nil && err == nil {
			chats = []model.Chat{}
		}
		return chats, err
	})
}

// Chat returns one chat.
func (r *Resources) Chat(ctx context.Context, id int64) (model.Chat, error) {
	return Fetch(ctx, r.cache, ItemKey(KindChats, id), func(ctx context.Context) (model.Chat, error) {
		c, err := r.api.GetChat(ctx, id)
		if err != nil {
			return model.Chat{}, err
		}
		return *c, nil
	})
}

// Messages returns the confirmed message history of a chat.
func (r *Resources) Messages(ctx context.Context, chatID int64) ([]model.Message, error) {
	return Fetch(ctx, r.cache, MessagesKey(chatID), func(ctx context.Context) ([]model.Message, error) {
		msgs, err := r.api.ListMessages(ctx, chatID)
		if msgs == nil && err == nil {
			msgs = []model.Message{}
		}
		return msgs, err
	})
}

// Models returns every LLM model, including inactive ones.
func (r *Resources) Models(ctx context.Context) ([]model.LLMModel, error) {
	return Fetch(ctx, r.cache, ListKey(KindModels), func(ctx context.Context) ([]model.LLMModel, error) {
		list, err := r.api.ListLLMModels(ctx)
		if list == nil && err == nil {
			list = []model.LLMModel{}
		}
		return list, err
	})
}

// Model returns one LLM model.
func (r *Resources) Model(ctx context.Context, id int64) (model.LLMModel, error) {
	return Fetch(ctx, r.cache, ItemKey(KindModels, id), func(ctx context.Context) (model.LLMModel, error) {
		m, err := r.api.GetLLMModel(ctx, id)
		if err != nil {
			return model.LLMModel{}, err
		}
		return *m, nil
	})
}

// Servers returns every MCP server, including inactive ones.
func (r *Resources) Servers(ctx context.Context) ([]model.MCPServer, error) {
	return Fetch(ctx, r.cache, ListKey(KindServers), func(ctx context.Context) ([]model.MCPServer, error) {
		list, err := r.api.ListMCPServers(ctx)
		if list == nil && err == nil {
			list = []model.MCPServer{}
		}
		return list, err
	})
}

// Server returns one MCP server.
func (r *Resources) Server(ctx context.Context, id int64) (model.MCPServer, error) {
	return Fetch(ctx, r.cache, ItemKey(KindServers, id), func(ctx context.Context) (model.MCPServer, error) {
		s, err := r.api.GetMCPServer(ctx, id)
		if err != nil {
			return model.MCPServer{}, err
		}
		return *s, nil
	})
}

// PeekChats returns the cached chat list, if any.
func (r *Resources) PeekChats() ([]model.Chat, bool) {
	return Peek[[]model.Chat](r.cache, ListKey(KindChats))
}

// PeekMessages returns the cached history of a chat, if any.
func (r *Resources) PeekMessages(chatID int64) ([]model.Message, bool) {
	return Peek[[]model.Message](r.cache, MessagesKey(chatID))
}

// PeekModels returns the cached LLM model list, if any.
func (r *Resources) PeekModels() ([]model.LLMModel, bool) {
	return Peek[[]model.LLMModel](r.cache, ListKey(KindModels))
}

// PeekServers returns the cached MCP server list, if any.
func (r *Resources) PeekServers() ([]model.MCPServer, bool) {
	return Peek[[]model.MCPServer](r.cache, ListKey(KindServers))
}

// Invalidate marks keys stale and returns the refetch command.
func (r *Resources) Invalidate(kind Kind, ids ...int64) tea.Cmd {
	return r.cache.Invalidate(kind, ids...)
}
