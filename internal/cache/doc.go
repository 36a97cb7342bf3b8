// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache is the client-side resource cache for remotely stored
// entities: chats, per-chat message lists, LLM models and MCP servers.
//
// Reads follow stale-while-revalidate. Invalidating a key marks its value
// stale and schedules a background refetch; readers keep seeing the old
// value until the refetch lands, so a view never flashes empty. Identical
// fetches in flight at the same time share one request.
//
// Every fetch takes a request token. A response is applied only if its
// token is still the latest issued for the key, so an older response can
// never overwrite a newer one. Local writes made while a fetch is in flight
// are re-applied on top of that fetch's result.
//
// A failed refetch keeps the previous value, is reported once to the
// notification sink, and is never retried automatically.
//
// Snapshots are namespaced by a scope derived from the backend address and
// token (ScopeFor). SetScope and Reset drop every entry and orphan the
// fetches still in flight, so a response meant for the previous identity
// is never shown or persisted.
//
// # Key Types
//
//   - Cache: Keyed store shared by the controllers and fetch goroutines
//   - Key, Kind: Cache addressing (kind plus optional id)
//   - Resources: Typed facade binding keys to backend loaders
//   - RefreshedMsg, RefreshFailedMsg: Results of background refetches
//
// # Usage
//
//	c := cache.New(cache.Options{Sink: toasts, Logger: logger})
//	res := cache.NewResources(client, c)
//
//	chats, err := res.Chats(ctx)        // fetch (deduplicated)
//	chats, ok := res.PeekChats()        // render without blocking
//	cmd := res.Invalidate(cache.KindChats)  // tea.Cmd that refetches
package cache
