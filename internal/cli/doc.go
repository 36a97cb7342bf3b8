// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands for
// parley.
//
// Running parley with no command starts the TUI. Every other command is a
// short request against the backend that prints a table, or a JSON
// envelope with --json, and exits.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed global flags plus the command's raw arguments
//   - ArgParser: Flag and positional parsing shared by all commands
//   - Runner: Executes one-shot commands against an API client
//   - REPL: Line-mode chat over a session.Controller
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	switch cmd {
//	case cli.CmdTUI:
//	    // start the bubbletea program
//	case cli.CmdChats:
//	    err = runner.Chats(ctx)
//	}
//
// # Commands Overview
//
//   - tui: Full-screen client (default)
//   - repl: Line-mode chat
//   - chats, models, servers: List resources
//   - test-server: Run a connection test for one MCP server
//   - health: Probe the backend
//   - export: Write a chat transcript as Markdown or JSON
//   - config: Show, locate or create the config file
//   - version, help
package cli
