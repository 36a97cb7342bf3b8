// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Kind names a family of cached resources.
type Kind string

const (
	KindChats    Kind = "chats"
	KindMessages Kind = "messages"
	KindModels   Kind = "llm-models"
	KindServers  Kind = "mcp-servers"
)

// label is the noun used in failure reports.
func (k Kind) label(item bool) string {
	switch k {
	case KindChats:
		if item {
			return "chat"
		}
		return "chats"
	case KindMessages:
		return "messages"
	case KindModels:
		if item {
			return "LLM model"
		}
		return "LLM models"
	case KindServers:
		if item {
			return "MCP server"
		}
		return "MCP servers"
	default:
		return string(k)
	}
}

// Key addresses one cached value. ID 0 is the kind's list; for
// KindMessages the ID is the chat whose messages are cached.
type Key struct {
	Kind Kind
	ID   int64
}

// ListKey addresses the list of a kind.
func ListKey(kind Kind) Key { return Key{Kind: kind} }

// ItemKey addresses one entity (or, for KindMessages, one chat's list).
func ItemKey(kind Kind, id int64) Key { return Key{Kind: kind, ID: id} }

// MessagesKey addresses the message list of a chat.
func MessagesKey(chatID int64) Key { return Key{Kind: KindMessages, ID: chatID} }

// IsList reports whether k addresses a kind's list.
func (k Key) IsList() bool { return k.ID == 0 }

// String renders the key as "kind" or "kind/id". Prefixed with the cache
// scope, it is also the snapshot key.
func (k Key) String() string {
	if k.ID == 0 {
		return string(k.Kind)
	}
	return string(k.Kind) + "/" + strconv.FormatInt(k.ID, 10)
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	kind, id, found := strings.Cut(s, "/")
	if kind == "" {
		return Key{}, fmt.Errorf("invalid cache key %q", s)
	}
	if !found {
		return ListKey(Kind(kind)), nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Key{}, fmt.Errorf("invalid cache key %q", s)
	}
	return ItemKey(Kind(kind), n), nil
}

// DefaultFailureText is the report sent to the sink when a fetch fails.
func DefaultFailureText(key Key, _ error) string {
	if key.Kind == KindMessages {
		return "Failed to fetch messages"
	}
	return "Failed to fetch " + key.Kind.label(!key.IsList())
}

// ScopeFor derives a snapshot scope from a backend address and the token
// used against it. The token itself never reaches the store.
func ScopeFor(baseURL, token string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(baseURL+"\n"+token)).String()
}
