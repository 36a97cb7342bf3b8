// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists resource cache snapshots for warm starts.
//
// Snapshots are opaque JSON blobs keyed by cache key ("chats",
// "messages/12", ...). They are stored in a single SQLite table via the pure
// Go modernc.org/sqlite driver, so no cgo toolchain is needed.
//
// A snapshot is only ever a hint: the cache serves it as stale data and
// revalidates against the backend on first use.
//
// # Key Types
//
//   - SnapshotStore: SQLite-backed key/value snapshot table
//
// # Usage
//
//	store, err := storage.Open(cfg.Cache.SnapshotPath)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	c := cache.New(cache.Options{Snapshots: store})
package storage
