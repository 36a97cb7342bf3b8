// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the domain types shared by the API client, the
// resource cache and the controllers.
//
// The types mirror the platform's wire format: chats, the messages inside a
// chat, and the two administrative catalogs (LLM model configurations and MCP
// tool-server configurations) that chats reference.
//
// # Key Types
//
//   - Chat: A conversation owned by the current user
//   - Message: One turn in a chat, either server-confirmed or locally authored
//   - LLMModel, MCPServer: Catalog entities, selectable when active
//   - LLMModelDraft, MCPServerDraft: Form shapes used for create and edit
//   - LocalIDs: Monotonic ULID source for locally authored messages
//
// # Usage
//
// Build the optimistic user message for a send:
//
//	ids := model.NewLocalIDs(time.Now)
//	msg := model.NewPendingUserMessage(chatID, ids.Next(), "hello", time.Now())
//
// Filter a catalog for the new-chat picker:
//
//	choices := model.ActiveOnly(models)
package model
