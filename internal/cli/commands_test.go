// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/fakeapi"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRunner(t *testing.T, jsonOut bool) (*Runner, *fakeapi.Server, *bytes.Buffer) {
	t.Helper()
	srv := fakeapi.New(fakeapi.Options{Logger: zerolog.Nop()})
	srv.Store().Seed()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	var out bytes.Buffer
	r := &Runner{
		API:     api.NewClient(ts.URL + fakeapi.Prefix),
		BaseURL: ts.URL + fakeapi.Prefix,
		Out:     &out,
		Err:     &out,
		JSON:    jsonOut,
		Now:     func() time.Time { return fixedNow },
	}
	return r, srv, &out
}

func decode(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &env), out.String())
	return env
}

func serverID(t *testing.T, srv *fakeapi.Server, name string) string {
	t.Helper()
	for _, s := range srv.Store().Servers() {
		if s.Name == name {
			return strconv.FormatInt(s.ID, 10)
		}
	}
	t.Fatalf("no server %q", name)
	return ""
}

// =============================================================================
// LIST COMMANDS
// =============================================================================

func TestRunner_Chats(t *testing.T) {
	r, _, out := newRunner(t, false)

	require.NoError(t, r.Run(context.Background(), CmdChats, Args{}))
	assert.Contains(t, out.String(), "Title")
	assert.Contains(t, out.String(), "Welcome")
}

func TestRunner_ChatsEmpty(t *testing.T) {
	srv := fakeapi.New(fakeapi.Options{Logger: zerolog.Nop()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	var out bytes.Buffer
	r := &Runner{API: api.NewClient(ts.URL + fakeapi.Prefix), Out: &out, JSON: true, Now: func() time.Time { return fixedNow }}

	require.NoError(t, r.Chats(context.Background()))
	env := decode(t, &out)
	assert.Equal(t, []any{}, env["data"], "an empty list is [] rather than null")
}

func TestRunner_ModelsHidesInactive(t *testing.T) {
	r, _, out := newRunner(t, false)
	ctx := context.Background()

	require.NoError(t, r.Run(ctx, CmdModels, Args{}))
	assert.Contains(t, out.String(), "GPT-4o")
	assert.NotContains(t, out.String(), "Legacy")

	out.Reset()
	require.NoError(t, r.Run(ctx, CmdModels, Args{Raw: []string{"--all"}}))
	assert.Contains(t, out.String(), "Legacy")
}

func TestRunner_ServersJSON(t *testing.T) {
	r, _, out := newRunner(t, true)

	require.NoError(t, r.Run(context.Background(), CmdServers, Args{Raw: []string{"--all"}}))
	env := decode(t, out)
	assert.Equal(t, true, env["success"])
	assert.Equal(t, "servers", env["command"])
	assert.Equal(t, "2025-03-01T12:00:00Z", env["timestamp"])
	data, ok := env["data"].([]any)
	require.True(t, ok)
	assert.Len(t, data, 2)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestRunner_JSONErrorEnvelope(t *testing.T) {
	r, srv, out := newRunner(t, true)
	srv.FailNext(fakeapi.RouteListChats, http.StatusInternalServerError, "database unavailable")

	err := r.Run(context.Background(), CmdChats, Args{})
	require.Error(t, err)
	assert.Equal(t, ExitGeneralError, ExitCode(err))

	env := decode(t, out)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "database unavailable", env["error"])
	assert.Nil(t, env["data"])
}

func TestRunner_Unauthorized(t *testing.T) {
	srv := fakeapi.New(fakeapi.Options{Logger: zerolog.Nop(), Token: "secret"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	var out bytes.Buffer
	r := &Runner{API: api.NewClient(ts.URL + fakeapi.Prefix), Out: &out}

	err := r.Chats(context.Background())
	assert.Equal(t, ExitAuthError, ExitCode(err))

	var display bytes.Buffer
	DisplayError(&display, err)
	assert.Contains(t, display.String(), "PARLEY_TOKEN")
}

func TestRunner_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	var out bytes.Buffer
	r := &Runner{API: api.NewClient(url + fakeapi.Prefix).WithTimeout(2 * time.Second), Out: &out}

	err := r.Health(context.Background())
	assert.Equal(t, ExitNetworkError, ExitCode(err))
}

// =============================================================================
// TEST-SERVER / HEALTH
// =============================================================================

func TestRunner_TestServer(t *testing.T) {
	r, srv, out := newRunner(t, false)
	ctx := context.Background()

	require.NoError(t, r.Run(ctx, CmdTestServer, Args{Subcommand: serverID(t, srv, "search")}))
	assert.Contains(t, out.String(), "Server connection successful!")

	out.Reset()
	err := r.Run(ctx, CmdTestServer, Args{Subcommand: serverID(t, srv, "files")})
	assert.ErrorIs(t, err, ErrTestFailed)
	assert.Contains(t, out.String(), "Server connection failed: Server is not active")

	var display bytes.Buffer
	DisplayError(&display, err)
	assert.Empty(t, display.String(), "the failure was already printed")
}

func TestRunner_TestServerNeedsID(t *testing.T) {
	r, srv, _ := newRunner(t, false)

	err := r.Run(context.Background(), CmdTestServer, Args{})
	assert.Equal(t, ExitUsageError, ExitCode(err))
	assert.Zero(t, srv.Hits(fakeapi.RouteTestServer))
}

func TestRunner_Health(t *testing.T) {
	r, _, out := newRunner(t, true)

	require.NoError(t, r.Run(context.Background(), CmdHealth, Args{}))
	env := decode(t, out)
	data := env["data"].(map[string]any)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, r.BaseURL, data["base_url"])
}

// =============================================================================
// CONFIG / VERSION
// =============================================================================

func TestRunner_ConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer
	r := &Runner{ConfigPath: path, Out: &out}

	require.NoError(t, r.ConfigCmd(Args{Raw: []string{"init"}}))
	_, err := os.Stat(path)
	require.NoError(t, err)

	err = r.ConfigCmd(Args{Raw: []string{"init"}})
	assert.Equal(t, ExitUsageError, ExitCode(err), "init refuses to overwrite")
	require.NoError(t, r.ConfigCmd(Args{Raw: []string{"init", "--force"}}))

	cfg := config.Default()
	cfg.Auth.Token = "super-secret"
	r.Config = cfg
	out.Reset()
	require.NoError(t, r.ConfigCmd(Args{Raw: []string{"show"}}))
	assert.Contains(t, out.String(), "base_url")
	assert.NotContains(t, out.String(), "super-secret")

	out.Reset()
	require.NoError(t, r.ConfigCmd(Args{Raw: []string{"path"}}))
	assert.Equal(t, path+"\n", out.String())

	err = r.ConfigCmd(Args{Raw: []string{"explode"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestRunner_VersionJSON(t *testing.T) {
	var out bytes.Buffer
	r := &Runner{Out: &out, JSON: true, Now: func() time.Time { return fixedNow }}

	require.NoError(t, r.Run(context.Background(), CmdVersion, Args{}))
	env := decode(t, &out)
	data := env["data"].(map[string]any)
	assert.Equal(t, Version, data["version"])
	assert.NotEmpty(t, data["go_version"])
}

// =============================================================================
// EXPORT
// =============================================================================

func welcomeID(t *testing.T, srv *fakeapi.Server) string {
	t.Helper()
	chats := srv.Store().Chats()
	require.NotEmpty(t, chats)
	return strconv.FormatInt(chats[0].ID, 10)
}

func TestRunner_ExportMarkdownToStdout(t *testing.T) {
	r, srv, out := newRunner(t, false)

	require.NoError(t, r.Run(context.Background(), CmdExport, Args{Raw: []string{welcomeID(t, srv)}}))
	assert.Contains(t, out.String(), "# Welcome")
	assert.Contains(t, out.String(), "### [User]")
	assert.Contains(t, out.String(), fakeapi.EchoReply("Hello!"))
}

func TestRunner_ExportJSONToDir(t *testing.T) {
	r, srv, out := newRunner(t, true)
	dir := t.TempDir()

	require.NoError(t, r.Run(context.Background(), CmdExport, Args{Raw: []string{welcomeID(t, srv), "--format", "json", "--output", dir}}))
	env := decode(t, out)
	data := env["data"].(map[string]any)
	assert.Equal(t, "json", data["format"])
	assert.EqualValues(t, 2, data["messages"])

	written, err := os.ReadFile(data["path"].(string))
	require.NoError(t, err)
	assert.True(t, json.Valid(written))
	assert.Equal(t, dir, filepath.Dir(data["path"].(string)))
}

func TestRunner_ExportErrors(t *testing.T) {
	r, srv, _ := newRunner(t, false)
	ctx := context.Background()

	err := r.Run(ctx, CmdExport, Args{})
	assert.Equal(t, ExitUsageError, ExitCode(err))

	err = r.Run(ctx, CmdExport, Args{Raw: []string{welcomeID(t, srv), "--format", "pdf"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
	assert.Zero(t, srv.Hits(fakeapi.RouteGetChat), "a bad format is rejected before any request")

	err = r.Run(ctx, CmdExport, Args{Raw: []string{"9999"}})
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
}
