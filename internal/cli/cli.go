// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information, set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command represents a CLI command.
type Command int

const (
	CmdTUI Command = iota
	CmdREPL
	CmdChats
	CmdModels
	CmdServers
	CmdTestServer
	CmdHealth
	CmdExport
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:        "tui",
	CmdREPL:       "repl",
	CmdChats:      "chats",
	CmdModels:     "models",
	CmdServers:    "servers",
	CmdTestServer: "test-server",
	CmdHealth:     "health",
	CmdExport:     "export",
	CmdConfig:     "config",
	CmdVersion:    "version",
	CmdHelp:       "help",
}

// String returns the command name as typed.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Args holds the global flags and everything after the command name.
type Args struct {
	JSON       bool
	Verbose    bool
	Quiet      bool
	ConfigPath string
	BaseURL    string

	// Subcommand is the first argument after the command, e.g. "show" in
	// "parley config show".
	Subcommand string
	// Raw is every argument after the command name.
	Raw []string
	// Unknown is set when the command name was not recognized.
	Unknown string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `parley - terminal client for the chat platform

Usage:
  parley [flags] [command] [args]

Commands:
  tui                  Start the full-screen client (default)
  repl                 Chat in line mode
  chats                List your chats
  models               List LLM models
  servers              List MCP servers
  test-server <id>     Test the connection to an MCP server
  health               Check that the backend is reachable
  export <chat-id> [--format md|json] [--output DIR]
                       Write a chat transcript to stdout or DIR
  config [show|path|init]
                       Show the effective config, print its path,
                       or write a default config file
  version              Show version information
  help                 Show this help

Flags:
  --config PATH        Config file (default ~/.parley/config.toml)
  --base-url URL       Backend API URL, including the /api/v1 prefix
  --json               Machine-readable output
  -v, --verbose        Debug logging
  -q, --quiet          Minimal output

Environment:
  PARLEY_BASE_URL, PARLEY_TOKEN, PARLEY_TOKEN_FILE, PARLEY_TIMEOUT,
  PARLEY_LOG_LEVEL, PARLEY_NO_COLOR, NO_COLOR
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// VersionInfo is the version payload for --json output.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentVersion returns the build's version information.
func CurrentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// =============================================================================
// PARSING
// =============================================================================

// Parse splits argv (without the program name) into a command and its
// arguments. No arguments starts the TUI; an unknown command yields
// CmdHelp with Args.Unknown set.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	name := strings.ToLower(remaining[0])
	args.Raw = remaining[1:]
	if len(args.Raw) > 0 && !strings.HasPrefix(args.Raw[0], "-") {
		args.Subcommand = args.Raw[0]
	}

	switch name {
	case "tui":
		return CmdTUI, args
	case "repl", "chat":
		return CmdREPL, args
	case "chats", "ls":
		return CmdChats, args
	case "models":
		return CmdModels, args
	case "servers":
		return CmdServers, args
	case "test-server", "test":
		return CmdTestServer, args
	case "health", "status":
		return CmdHealth, args
	case "export":
		return CmdExport, args
	case "config":
		return CmdConfig, args
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		args.Unknown = remaining[0]
		return CmdHelp, args
	}
}

// parseGlobalFlags pulls global flags out of args wherever they appear and
// returns the rest in order.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "--json":
			args.JSON = true
		case "-v", "--verbose":
			args.Verbose = true
		case "-q", "--quiet":
			args.Quiet = true
		case "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		case "--base-url":
			if i+1 < len(argv) {
				i++
				args.BaseURL = argv[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				args.ConfigPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--base-url="):
				args.BaseURL = strings.TrimPrefix(arg, "--base-url=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}
	return remaining, args
}
