// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// DefaultChatTitle is used when a chat is created without a title.
const DefaultChatTitle = "New Chat"

// Chat is a conversation owned by the current user. Title and the model and
// server references are fixed at creation.
type Chat struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	UserID      int64      `json:"user_id"`
	LLMModelID  *int64     `json:"llm_model_id,omitempty"`
	MCPServerID *int64     `json:"mcp_server_id,omitempty"`
	CreatedAt   Timestamp  `json:"created_at"`
	UpdatedAt   *Timestamp `json:"updated_at,omitempty"`
	Messages    []Message  `json:"messages,omitempty"`
}

// DisplayTitle returns the title, falling back to DefaultChatTitle.
func (c Chat) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return DefaultChatTitle
}

// ChatDraft is the request body for creating a chat.
type ChatDraft struct {
	Title       string `json:"title"`
	LLMModelID  *int64 `json:"llm_model_id,omitempty"`
	MCPServerID *int64 `json:"mcp_server_id,omitempty"`
}

// Normalize trims the title and applies the default.
func (d ChatDraft) Normalize() ChatDraft {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = DefaultChatTitle
	}
	return d
}

// Validate checks that the draft references a model.
func (d ChatDraft) Validate() error {
	if d.LLMModelID == nil || *d.LLMModelID <= 0 {
		return &ValidationError{Field: "llm_model_id", Message: "a model must be selected"}
	}
	if d.MCPServerID != nil && *d.MCPServerID <= 0 {
		return &ValidationError{Field: "mcp_server_id", Message: "invalid server id"}
	}
	return nil
}

// IDRef returns a pointer to id, or nil for zero.
func IDRef(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// PrependChat returns chats with c at the front, removing any older copy
// with the same id. The input slice is never modified.
func PrependChat(chats []Chat, c Chat) []Chat {
	out := make([]Chat, 0, len(chats)+1)
	out = append(out, c)
	for _, existing := range chats {
		if existing.ID != c.ID {
			out = append(out, existing)
		}
	}
	return out
}

// RemoveChat returns chats without the chat with the given id.
func RemoveChat(chats []Chat, id int64) []Chat {
	out := make([]Chat, 0, len(chats))
	for _, c := range chats {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// FindChat returns the chat with the given id.
func FindChat(chats []Chat, id int64) (Chat, bool) {
	for _, c := range chats {
		if c.ID == id {
			return c, true
		}
	}
	return Chat{}, false
}
