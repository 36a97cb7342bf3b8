// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fakeapi serves the chat platform's HTTP API from memory.
//
// It exists for tests and local development: the TUI, the REPL and the
// api package tests all run against it without a real backend. Routes,
// status codes and error bodies follow the real backend, including the
// {"detail": "..."} error envelope and the 200-with-success-false shape of
// a failed connection test.
//
// Failures can be injected per route with FailNext, and every handler can
// be slowed down with Options.Latency to make in-flight states visible.
//
// # Key Types
//
//   - Server: chi router, middleware stack and lifecycle
//   - Store: In-memory chats, messages, models and servers
//   - Options: Token, latency, logger and clock
//
// # Usage
//
//	srv := fakeapi.New(fakeapi.Options{Logger: logger})
//	srv.Store().Seed()
//	ts := httptest.NewServer(srv.Handler())
//	client := api.NewClient(ts.URL + fakeapi.Prefix)
//
//	srv.FailNext("POST /chat/{id}/messages", 500, "Error sending message: boom")
package fakeapi
