// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// CHAT ENDPOINTS
// =============================================================================

const chatsPath = "/chat/"

func chatPath(id int64) string {
	return fmt.Sprintf("/chat/%d", id)
}

// ListChats returns the user's chats, newest first.
func (c *Client) ListChats(ctx context.Context) ([]model.Chat, error) {
	var chats []model.Chat
	if err := c.do(ctx, http.MethodGet, chatsPath, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// GetChat returns one chat with its embedded messages.
func (c *Client) GetChat(ctx context.Context, id int64) (*model.Chat, error) {
	var chat model.Chat
	if err := c.do(ctx, http.MethodGet, chatPath(id), nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListMessages returns a chat's messages in append order.
func (c *Client) ListMessages(ctx context.Context, chatID int64) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.do(ctx, http.MethodGet, chatPath(chatID)+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].ChatID == 0 {
			msgs[i].ChatID = chatID
		}
	}
	return msgs, nil
}

// CreateChat creates a chat.
func (c *Client) CreateChat(ctx context.Context, draft model.ChatDraft) (*model.Chat, error) {
	var chat model.Chat
	if err := c.do(ctx, http.MethodPost, chatsPath, draft, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// SendMessage posts a user message and returns the assistant's reply.
func (c *Client) SendMessage(ctx context.Context, chatID int64, content string) (*model.SendResult, error) {
	body := struct {
		Content string `json:"content"`
	}{Content: content}

	var res model.SendResult
	if err := c.do(ctx, http.MethodPost, chatPath(chatID)+"/messages", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteChat deletes a chat and its messages.
func (c *Client) DeleteChat(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, chatPath(id), nil, nil)
}
