// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/api"
)

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
	}{
		{
			name:    "no args starts the TUI",
			argv:    nil,
			wantCmd: CmdTUI,
		},
		{
			name:    "global flags only",
			argv:    []string{"--base-url", "http://h:1/api/v1", "-v"},
			wantCmd: CmdTUI,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "http://h:1/api/v1", a.BaseURL)
				assert.True(t, a.Verbose)
			},
		},
		{
			name:    "flags after the command",
			argv:    []string{"models", "--json", "--all"},
			wantCmd: CmdModels,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.Equal(t, []string{"--all"}, a.Raw)
				assert.Empty(t, a.Subcommand)
			},
		},
		{
			name:    "equals form",
			argv:    []string{"--config=/tmp/p.toml", "config", "show"},
			wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "/tmp/p.toml", a.ConfigPath)
				assert.Equal(t, "show", a.Subcommand)
			},
		},
		{
			name:    "test-server takes an id",
			argv:    []string{"test-server", "4"},
			wantCmd: CmdTestServer,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "4", a.Subcommand)
			},
		},
		{
			name:    "export keeps its flags",
			argv:    []string{"export", "3", "--format", "json"},
			wantCmd: CmdExport,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "3", a.Subcommand)
				assert.Equal(t, []string{"3", "--format", "json"}, a.Raw)
			},
		},
		{
			name:    "case insensitive",
			argv:    []string{"REPL"},
			wantCmd: CmdREPL,
		},
		{
			name:    "aliases",
			argv:    []string{"status"},
			wantCmd: CmdHealth,
		},
		{
			name:    "version flag",
			argv:    []string{"--version"},
			wantCmd: CmdVersion,
		},
		{
			name:    "unknown command",
			argv:    []string{"frobnicate"},
			wantCmd: CmdHelp,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "frobnicate", a.Unknown)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := Parse(tt.argv)
			assert.Equal(t, tt.wantCmd, cmd)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "test-server", CmdTestServer.String())
	assert.Equal(t, "Command(99)", Command(99).String())
}

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"show", "--limit", "5", "--all", "extra", "--name=x", "-f", "v"}, "all")

	assert.Equal(t, "show", p.Positional(0))
	assert.Equal(t, "extra", p.Positional(1), "a boolean flag never consumes the next argument")
	assert.Equal(t, 2, p.PositionalCount())
	assert.Equal(t, "5", p.Flag("limit"))
	assert.Equal(t, "x", p.Flag("--name"))
	assert.Equal(t, "v", p.Flag("f"))
	assert.True(t, p.BoolFlag("all"))
	assert.True(t, p.HasFlag("limit"))
	assert.False(t, p.HasFlag("missing"))
	assert.Equal(t, "dflt", p.FlagOrDefault("missing", "dflt"))
	assert.Equal(t, "", p.Positional(9))
	assert.Nil(t, p.PositionalFrom(9))
}

func TestArgParser_DoubleDash(t *testing.T) {
	p := NewArgParser([]string{"--json", "--", "--not-a-flag"})
	assert.True(t, p.BoolFlag("json"))
	assert.Equal(t, []string{"--not-a-flag"}, p.PositionalFrom(0))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("server id", "12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := ParseID("server id", bad)
		var usage *UsageError
		assert.ErrorAs(t, err, &usage, bad)
	}
}

// =============================================================================
// EXIT CODE TESTS
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Message: "bad"}, ExitUsageError},
		{"config", &ConfigError{Path: "p", Err: errors.New("x")}, ExitConfigError},
		{"unauthorized", fmt.Errorf("list: %w", &api.Error{Status: 401}), ExitAuthError},
		{"forbidden", &api.Error{Status: 403}, ExitAuthError},
		{"not found", &api.Error{Status: 404}, ExitNotFoundError},
		{"timeout", fmt.Errorf("wrap: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"unavailable", fmt.Errorf("%w: GET /chat/", api.ErrUnavailable), ExitNetworkError},
		{"server", &api.Error{Status: 500}, ExitGeneralError},
		{"test failed", ErrTestFailed, ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestMessage_PrefersServerDetail(t *testing.T) {
	assert.Equal(t, "Model name already taken", Message(&api.Error{Status: 400, Detail: "Model name already taken"}))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
