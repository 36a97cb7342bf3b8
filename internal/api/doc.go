// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the chat platform backend.
//
// It covers the user chat endpoints (list, fetch, create, delete, send) and
// the administrative catalog endpoints for LLM models and MCP servers,
// including the server connection test.
//
// The client never retries. A failed call is returned to the caller, which
// reports it and leaves re-triggering to the user.
//
// # Key Types
//
//   - Client: Backend client with bearer auth, timeout and rate limiting
//   - Error: Non-2xx response carrying the server's detail message
//   - TokenSource: Supplies the bearer token per request
//
// # Usage
//
//	client := api.NewClient("http://localhost:8000/api/v1").
//	    WithToken(api.StaticToken(token)).
//	    WithTimeout(30 * time.Second).
//	    WithLogger(logger)
//
//	chats, err := client.ListChats(ctx)
//	if err != nil {
//	    sink.Error(api.DetailOr(err, "Failed to fetch chats"))
//	}
package api
