// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a chat and its messages as a standalone document.
//
// # Key Types
//
//   - Exporter: renders a Transcript into one format
//   - Transcript: a chat plus its messages in append order
//   - Options: metadata and timestamp switches, output directory
//
// # Supported Formats
//
//   - Markdown: YAML frontmatter, one section per message
//   - JSON: the chat with its messages, indented
//
// # Usage
//
//	exp, err := export.ForFormat("md", export.DefaultOptions())
//	data, err := exp.Export(export.Transcript{Chat: chat, Messages: msgs})
//
// Write to a file named after the chat:
//
//	path, err := export.ToFile(transcript, exp, opts)
package export
