// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE STATE
// =============================================================================

// MessageState tracks whether a message is known to the server.
type MessageState int

const (
	// StateConfirmed is a message the server has acknowledged.
	StateConfirmed MessageState = iota
	// StatePending is a locally authored message whose send has not settled.
	StatePending
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn in a chat.
//
// Server messages carry ID. Locally authored messages carry LocalID instead,
// drawn from a namespace that can never collide with server ids.
type Message struct {
	ID        int64          `json:"id,omitempty"`
	LocalID   string         `json:"local_id,omitempty"`
	ChatID    int64          `json:"chat_id,omitempty"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt Timestamp      `json:"created_at"`

	State MessageState `json:"-"`
}

// UnmarshalJSON accepts both "metadata" (message list endpoint) and
// "message_metadata" (messages embedded in a chat).
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		MessageMetadata map[string]any `json:"message_metadata"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	if m.Metadata == nil && aux.MessageMetadata != nil {
		m.Metadata = aux.MessageMetadata
	}
	return nil
}

// Key returns an identity that is unique within a chat across both id
// namespaces. A message with neither id has no identity and an empty key.
func (m Message) Key() string {
	if m.LocalID != "" {
		return "local:" + m.LocalID
	}
	if m.ID == 0 {
		return ""
	}
	return "id:" + strconv.FormatInt(m.ID, 10)
}

// IsLocal reports whether the message was authored on this client.
func (m Message) IsLocal() bool {
	return m.LocalID != ""
}

// IsPending reports whether the message is awaiting its send result.
func (m Message) IsPending() bool {
	return m.State == StatePending
}

// NewPendingUserMessage builds the optimistic user message shown while a
// send is in flight.
func NewPendingUserMessage(chatID int64, localID, content string, now time.Time) Message {
	return Message{
		LocalID:   localID,
		ChatID:    chatID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: NewTimestamp(now),
		State:     StatePending,
	}
}

// Confirmed returns a copy of m marked as acknowledged by the server.
func (m Message) Confirmed() Message {
	m.State = StateConfirmed
	return m
}

// =============================================================================
// SEND RESULT
// =============================================================================

// SendResult is the server's answer to a posted message.
type SendResult struct {
	MessageID int64          `json:"message_id"`
	Content   string         `json:"content"`
	Model     string         `json:"model"`
	Provider  string         `json:"provider"`
	Usage     map[string]any `json:"usage,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
}

// AssistantMessage converts the result into the assistant message appended
// to the chat. The id is the server's.
func (r SendResult) AssistantMessage(chatID int64, now time.Time) Message {
	meta := map[string]any{}
	if r.Model != "" {
		meta["model"] = r.Model
	}
	if r.Provider != "" {
		meta["provider"] = r.Provider
	}
	if len(r.Usage) > 0 {
		meta["usage"] = r.Usage
	}
	if r.TraceID != "" {
		meta["trace_id"] = r.TraceID
	}
	if len(meta) == 0 {
		meta = nil
	}
	return Message{
		ID:        r.MessageID,
		ChatID:    chatID,
		Role:      RoleAssistant,
		Content:   r.Content,
		Metadata:  meta,
		CreatedAt: NewTimestamp(now),
	}
}

// =============================================================================
// LIST HELPERS
// =============================================================================

// HasMessage reports whether list contains a message with the same key.
// The empty key never matches.
func HasMessage(list []Message, key string) bool {
	if key == "" {
		return false
	}
	for _, m := range list {
		if m.Key() == key {
			return true
		}
	}
	return false
}

// AppendMessages returns list with each msg appended unless a message with
// the same key is already present. Messages without a key are always
// appended. The input slice is never modified.
func AppendMessages(list []Message, msgs ...Message) []Message {
	out := make([]Message, len(list), len(list)+len(msgs))
	copy(out, list)
	for _, m := range msgs {
		if HasMessage(out, m.Key()) {
			continue
		}
		out = append(out, m)
	}
	return out
}
