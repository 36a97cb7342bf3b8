// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across parley.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - TruncateWidth, PadWidth: Cell-width aware truncation for the terminal
//   - FirstLine: Single-line previews of multi-line text
//   - ParseID: Entity id parsing for CLI arguments
//
// # Usage
//
//	title := util.TruncateWidth(chat.Title, 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
