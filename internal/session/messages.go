// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/jeranaias/parley/internal/model"

// ChatsLoadedMsg is the result of a chat-list fetch. On error the cache has
// already reported the failure.
type ChatsLoadedMsg struct {
	Chats []model.Chat
	Err   error
}

// MessagesLoadedMsg is the result of a message-list fetch for ChatID.
// Token is the selection token at the time the fetch was issued.
type MessagesLoadedMsg struct {
	ChatID int64
	Token  uint64
	Err    error
}

// MessageSentMsg is the result of a send.
type MessageSentMsg struct {
	ChatID  int64
	LocalID string
	Content string
	Result  *model.SendResult
	Err     error
}

// ChatCreatedMsg is the result of a chat creation.
type ChatCreatedMsg struct {
	Chat *model.Chat
	Err  error
}

// ChatDeletedMsg is the result of a chat deletion.
type ChatDeletedMsg struct {
	ChatID int64
	Err    error
}

// CatalogLoadedMsg reports that the selectable models and servers were
// fetched for the new-chat picker.
type CatalogLoadedMsg struct {
	Err error
}
