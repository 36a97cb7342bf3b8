// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the chat view state: which chat is selected, the
// message list shown for it, and the optimistic send protocol.
//
// The controller is not safe for concurrent use. It is mutated only from a
// Bubble Tea Update loop (or an equivalent single goroutine); every remote
// call runs inside a tea.Cmd and comes back as a message passed to Update.
// Message fetches are never cancelled. A fetch that resolves after the
// selection moved on is discarded by comparing its token.
//
// # Key Types
//
//   - Controller: Selection state machine and send protocol
//   - State: NoChats or HasChats
//   - ChatsLoadedMsg, MessagesLoadedMsg: Fetch results
//   - MessageSentMsg, ChatCreatedMsg, ChatDeletedMsg: Mutation results
//
// # Usage
//
//	ctrl := session.New(session.Options{API: client, Resources: res, Sink: toasts})
//	cmd := ctrl.Init()              // fetch chats, auto-select the first
//
//	ctrl.SetInput("hello")
//	cmd, err := ctrl.Send()         // pending message shown immediately
//
//	// in Update:
//	cmd = ctrl.Update(msg)
//
// # Send Failure
//
// A failed send removes the pending message, puts the text back in the
// composer if the user has not typed anything since, and reports one
// error. Nothing is retried.
package session
