// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fakeapi

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// Errors returned by Store. Handlers map them onto backend detail strings.
var (
	ErrChatNotFound   = errors.New("Chat not found")
	ErrModelNotFound  = errors.New("LLM model not found")
	ErrServerNotFound = errors.New("MCP server not found")
)

// DefaultUserID owns every chat in the store.
const DefaultUserID = 1

// Store holds the backend state. It is safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	nextID   int64
	chats    []model.Chat // newest first
	messages map[int64][]model.Message
	models   []model.LLMModel
	servers  []model.MCPServer
}

// NewStore creates an empty store. A nil now uses time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		nextID:   1,
		messages: make(map[int64][]model.Message),
	}
}

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Store) stamp() model.Timestamp {
	return model.NewTimestamp(s.now().UTC())
}

// Seed loads a small demo data set: two active models and one inactive,
// one active server and one inactive, and a chat with a short exchange.
func (s *Store) Seed() {
	gpt := s.AddModel(model.LLMModel{Name: "GPT-4o", Provider: "openai", ModelName: "gpt-4o", IsActive: true,
		Configuration: map[string]any{"temperature": 0.7, "max_tokens": 1024}})
	s.AddModel(model.LLMModel{Name: "Claude", Provider: "anthropic", ModelName: "claude-3-5-sonnet", IsActive: true})
	s.AddModel(model.LLMModel{Name: "Legacy", Provider: "openai", ModelName: "gpt-3.5-turbo", IsActive: false})

	search := s.AddServer(model.MCPServer{Name: "search", Description: "Web search tools",
		ServerURL: "http://localhost:9000", ServerType: "http", IsActive: true})
	s.AddServer(model.MCPServer{Name: "files", ServerURL: "ws://localhost:9001", ServerType: "websocket", IsActive: false})

	chat, _ := s.CreateChat(model.ChatDraft{Title: "Welcome", LLMModelID: &gpt.ID, MCPServerID: &search.ID})
	_, _ = s.SendMessage(chat.ID, "Hello!")
}

// =============================================================================
// CHATS
// =============================================================================

// Chats returns every chat, newest first, without embedded messages.
func (s *Store) Chats() []model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Chat, len(s.chats))
	copy(out, s.chats)
	return out
}

// Chat returns one chat with its messages embedded.
func (s *Store) Chat(id int64) (model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := model.FindChat(s.chats, id)
	if !ok {
		return model.Chat{}, ErrChatNotFound
	}
	c.Messages = append([]model.Message(nil), s.messages[id]...)
	return c, nil
}

// Messages returns a chat's messages in append order.
func (s *Store) Messages(chatID int64) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := model.FindChat(s.chats, chatID); !ok {
		return nil, ErrChatNotFound
	}
	out := make([]model.Message, len(s.messages[chatID]))
	copy(out, s.messages[chatID])
	return out, nil
}

// CreateChat stores a chat and returns it. The referenced model must exist
// and be active; the server, when given, must exist.
func (s *Store) CreateChat(draft model.ChatDraft) (model.Chat, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return model.Chat{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := model.FindEntity(s.models, *draft.LLMModelID)
	if !ok {
		return model.Chat{}, ErrModelNotFound
	}
	if !m.IsActive {
		return model.Chat{}, fmt.Errorf("LLM model %q is not active", m.Name)
	}
	if draft.MCPServerID != nil {
		if _, ok := model.FindEntity(s.servers, *draft.MCPServerID); !ok {
			return model.Chat{}, ErrServerNotFound
		}
	}

	c := model.Chat{
		ID:          s.id(),
		Title:       draft.Title,
		UserID:      DefaultUserID,
		LLMModelID:  draft.LLMModelID,
		MCPServerID: draft.MCPServerID,
		CreatedAt:   s.stamp(),
	}
	s.chats = model.PrependChat(s.chats, c)
	return c, nil
}

// DeleteChat removes a chat and its messages.
func (s *Store) DeleteChat(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := model.FindChat(s.chats, id); !ok {
		return ErrChatNotFound
	}
	s.chats = model.RemoveChat(s.chats, id)
	delete(s.messages, id)
	return nil
}

// SendMessage appends the user message and an echoed assistant reply, the
// way the backend stores both before answering.
func (s *Store) SendMessage(chatID int64, content string) (model.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := model.FindChat(s.chats, chatID)
	if !ok {
		return model.SendResult{}, ErrChatNotFound
	}

	var m model.LLMModel
	if c.LLMModelID != nil {
		m, _ = model.FindEntity(s.models, *c.LLMModelID)
	}

	user := model.Message{ID: s.id(), ChatID: chatID, Role: model.RoleUser, Content: content, CreatedAt: s.stamp()}
	reply := model.Message{
		ID:        s.id(),
		ChatID:    chatID,
		Role:      model.RoleAssistant,
		Content:   EchoReply(content),
		Metadata:  map[string]any{"model": m.ModelName, "provider": m.Provider},
		CreatedAt: s.stamp(),
	}
	s.messages[chatID] = append(s.messages[chatID], user, reply)

	return model.SendResult{
		MessageID: reply.ID,
		Content:   reply.Content,
		Model:     m.ModelName,
		Provider:  m.Provider,
		Usage: map[string]any{
			"prompt_tokens":     len(strings.Fields(content)),
			"completion_tokens": len(strings.Fields(reply.Content)),
		},
		TraceID: fmt.Sprintf("trace-%d", reply.ID),
	}, nil
}

// EchoReply is the assistant content produced for a user message.
func EchoReply(content string) string {
	return "Echo: " + content
}

// =============================================================================
// LLM MODELS
// =============================================================================

// AddModel stores m with a fresh id and creation time.
func (s *Store) AddModel(m model.LLMModel) model.LLMModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	m.CreatedAt = s.stamp()
	m.UpdatedAt = nil
	s.models = append(s.models, m)
	return m
}

// Models returns every model, active or not.
func (s *Store) Models() []model.LLMModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LLMModel(nil), s.models...)
}

// Model returns one model.
func (s *Store) Model(id int64) (model.LLMModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := model.FindEntity(s.models, id)
	if !ok {
		return model.LLMModel{}, ErrModelNotFound
	}
	return m, nil
}

// CreateModel validates draft and stores it.
func (s *Store) CreateModel(draft model.LLMModelDraft) (model.LLMModel, error) {
	if err := draft.Validate(); err != nil {
		return model.LLMModel{}, err
	}
	m := model.LLMModel{
		Name:          draft.Name,
		Provider:      draft.Provider,
		ModelName:     draft.ModelName,
		Description:   draft.Description,
		Configuration: draft.Configuration,
		IsActive:      draft.IsActive == nil || *draft.IsActive,
	}
	return s.AddModel(m), nil
}

// UpdateModel applies the non-empty fields of patch.
func (s *Store) UpdateModel(id int64, patch model.LLMModelDraft) (model.LLMModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := model.FindEntity(s.models, id)
	if !ok {
		return model.LLMModel{}, ErrModelNotFound
	}
	setIf(&m.Name, patch.Name)
	setIf(&m.Provider, patch.Provider)
	setIf(&m.ModelName, patch.ModelName)
	m.Description = patch.Description
	if patch.Configuration != nil {
		m.Configuration = patch.Configuration
	}
	if patch.IsActive != nil {
		m.IsActive = *patch.IsActive
	}
	ts := s.stamp()
	m.UpdatedAt = &ts
	s.models = model.UpsertEntity(s.models, m)
	return m, nil
}

// DeleteModel removes a model.
func (s *Store) DeleteModel(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := model.FindEntity(s.models, id); !ok {
		return ErrModelNotFound
	}
	s.models = model.RemoveEntity(s.models, id)
	return nil
}

// =============================================================================
// MCP SERVERS
// =============================================================================

// AddServer stores srv with a fresh id and creation time.
func (s *Store) AddServer(srv model.MCPServer) model.MCPServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv.ID = s.id()
	srv.CreatedAt = s.stamp()
	srv.UpdatedAt = nil
	s.servers = append(s.servers, srv)
	return srv
}

// Servers returns every server, active or not.
func (s *Store) Servers() []model.MCPServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.MCPServer(nil), s.servers...)
}

// Server returns one server.
func (s *Store) Server(id int64) (model.MCPServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv, ok := model.FindEntity(s.servers, id)
	if !ok {
		return model.MCPServer{}, ErrServerNotFound
	}
	return srv, nil
}

// CreateServer validates draft and stores it.
func (s *Store) CreateServer(draft model.MCPServerDraft) (model.MCPServer, error) {
	if err := draft.Validate(); err != nil {
		return model.MCPServer{}, err
	}
	srv := model.MCPServer{
		Name:          draft.Name,
		Description:   draft.Description,
		ServerURL:     draft.ServerURL,
		ServerType:    draft.ServerType,
		Configuration: draft.Configuration,
		IsActive:      draft.IsActive == nil || *draft.IsActive,
	}
	return s.AddServer(srv), nil
}

// UpdateServer applies the non-empty fields of patch.
func (s *Store) UpdateServer(id int64, patch model.MCPServerDraft) (model.MCPServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv, ok := model.FindEntity(s.servers, id)
	if !ok {
		return model.MCPServer{}, ErrServerNotFound
	}
	setIf(&srv.Name, patch.Name)
	setIf(&srv.ServerURL, patch.ServerURL)
	setIf(&srv.ServerType, patch.ServerType)
	srv.Description = patch.Description
	if patch.Configuration != nil {
		srv.Configuration = patch.Configuration
	}
	if patch.IsActive != nil {
		srv.IsActive = *patch.IsActive
	}
	ts := s.stamp()
	srv.UpdatedAt = &ts
	s.servers = model.UpsertEntity(s.servers, srv)
	return srv, nil
}

// DeleteServer removes a server.
func (s *Store) DeleteServer(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := model.FindEntity(s.servers, id); !ok {
		return ErrServerNotFound
	}
	s.servers = model.RemoveEntity(s.servers, id)
	return nil
}

// TestServer simulates a connection attempt. Inactive servers and URLs
// whose scheme does not match the server type fail; nothing is dialed.
func (s *Store) TestServer(id int64) model.TestResult {
	srv, err := s.Server(id)
	if err != nil {
		return model.TestResult{Success: false, Error: "Server not found"}
	}
	if msg := connectError(srv); msg != "" {
		return model.TestResult{Success: false, Error: msg}
	}
	return model.TestResult{
		Success:    true,
		ServerName: srv.Name,
		ServerURL:  srv.ServerURL,
		ServerType: srv.ServerType,
	}
}

func connectError(srv model.MCPServer) string {
	if !srv.IsActive {
		return "Server is not active"
	}
	u, err := url.Parse(srv.ServerURL)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("Invalid server URL: %s", srv.ServerURL)
	}
	switch srv.ServerType {
	case "http":
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Sprintf("Connection refused: %s", srv.ServerURL)
		}
	case "websocket":
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Sprintf("Connection refused: %s", srv.ServerURL)
		}
	default:
		return fmt.Sprintf("Unsupported server type: %s", srv.ServerType)
	}
	return ""
}

func setIf(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
