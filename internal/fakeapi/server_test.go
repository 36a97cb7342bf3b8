// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fakeapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/model"
)

func newTestServer(t *testing.T, opts Options) (*Server, *api.Client) {
	t.Helper()
	opts.Logger = zerolog.Nop()
	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client := api.NewClient(ts.URL + Prefix)
	if opts.Token != "" {
		client.WithToken(api.StaticToken(opts.Token))
	}
	return srv, client
}

func activeModel(t *testing.T, srv *Server) model.LLMModel {
	t.Helper()
	return srv.Store().AddModel(model.LLMModel{Name: "GPT-4o", Provider: "openai", ModelName: "gpt-4o", IsActive: true})
}

// =============================================================================
// CHAT ROUTES
// =============================================================================

func TestServer_ChatLifecycle(t *testing.T) {
	srv, client := newTestServer(t, Options{})
	ctx := context.Background()
	m := activeModel(t, srv)

	first, err := client.CreateChat(ctx, model.ChatDraft{Title: "first", LLMModelID: &m.ID})
	require.NoError(t, err)
	second, err := client.CreateChat(ctx, model.ChatDraft{LLMModelID: &m.ID})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultChatTitle, second.Title)
	assert.Equal(t, int64(DefaultUserID), second.UserID)

	chats, err := client.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID, "list should be newest first")
	assert.Equal(t, first.ID, chats[1].ID)

	res, err := client.SendMessage(ctx, first.ID, "hi there")
	require.NoError(t, err)
	assert.Equal(t, EchoReply("hi there"), res.Content)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.Equal(t, "openai", res.Provider)
	assert.NotEmpty(t, res.TraceID)

	msgs, err := client.ListMessages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, res.MessageID, msgs[1].ID)
	assert.Equal(t, "gpt-4o", msgs[1].Metadata["model"])

	got, err := client.GetChat(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)

	require.NoError(t, client.DeleteChat(ctx, first.ID))
	_, err = client.ListMessages(ctx, first.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, "Chat not found", api.Detail(err))
}

func TestServer_CreateChatRejectsInactiveModel(t *testing.T) {
	srv, client := newTestServer(t, Options{})
	ctx := context.Background()
	inactive := srv.Store().AddModel(model.LLMModel{Name: "old", Provider: "openai", ModelName: "x", IsActive: false})

	_, err := client.CreateChat(ctx, model.ChatDraft{LLMModelID: &inactive.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrInvalidRequest)
	assert.Contains(t, api.Detail(err), "not active")

	missing := int64(999)
	_, err = client.CreateChat(ctx, model.ChatDraft{LLMModelID: &missing})
	assert.ErrorIs(t, err, api.ErrNotFound)

	_, err = client.CreateChat(ctx, model.ChatDraft{})
	assert.ErrorIs(t, err, api.ErrInvalidRequest)
	assert.Contains(t, api.Detail(err), "llm_model_id")
}

func TestServer_SendToMissingChat(t *testing.T) {
	_, client := newTestServer(t, Options{})
	_, err := client.SendMessage(context.Background(), 42, "hello")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, "Chat not found", api.Detail(err))
}

func TestServer_BadPathID(t *testing.T) {
	srv := New(Options{Logger: zerolog.Nop()})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Prefix+"/chat/abc", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loc":["body","id"]`)
}

// =============================================================================
// ADMIN ROUTES
// =============================================================================

func TestServer_ModelCRUD(t *testing.T) {
	_, client := newTestServer(t, Options{})
	ctx := context.Background()

	created, err := client.CreateLLMModel(ctx, model.LLMModelDraft{
		Name: "GPT", Provider: "openai", ModelName: "gpt-4o",
		Configuration: map[string]any{"temperature": 0.2},
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive, "is_active should default to true")
	assert.Nil(t, created.UpdatedAt)

	off := false
	updated, err := client.UpdateLLMModel(ctx, created.ID, model.LLMModelDraft{Name: "GPT-4o", IsActive: &off})
	require.NoError(t, err)
	assert.Equal(t, "GPT-4o", updated.Name)
	assert.Equal(t, "openai", updated.Provider, "empty patch fields keep their value")
	assert.False(t, updated.IsActive)
	assert.NotNil(t, updated.UpdatedAt)

	list, err := client.ListLLMModels(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0.2, list[0].Configuration["temperature"])

	require.NoError(t, client.DeleteLLMModel(ctx, created.ID))
	_, err = client.GetLLMModel(ctx, created.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, "LLM model not found", api.Detail(err))
}

func TestServer_ModelValidation(t *testing.T) {
	_, client := newTestServer(t, Options{})
	_, err := client.CreateLLMModel(context.Background(), model.LLMModelDraft{Provider: "openai", ModelName: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrInvalidRequest)
	assert.Equal(t, "name: Field required", api.Detail(err))
}

func TestServer_ServerCRUD(t *testing.T) {
	_, client := newTestServer(t, Options{})
	ctx := context.Background()

	srv, err := client.CreateMCPServer(ctx, model.MCPServerDraft{Name: "search", ServerURL: "http://localhost:9000", ServerType: "http"})
	require.NoError(t, err)

	got, err := client.GetMCPServer(ctx, srv.ID)
	require.NoError(t, err)
	assert.Equal(t, "search", got.Name)

	_, err = client.UpdateMCPServer(ctx, srv.ID, model.MCPServerDraft{Description: "tools"})
	require.NoError(t, err)
	list, err := client.ListMCPServers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "tools", list[0].Description)

	require.NoError(t, client.DeleteMCPServer(ctx, srv.ID))
	err = client.DeleteMCPServer(ctx, srv.ID)
	assert.Equal(t, "MCP server not found", api.Detail(err))
}

func TestServer_TestConnection(t *testing.T) {
	srv, client := newTestServer(t, Options{})
	ctx := context.Background()
	st := srv.Store()

	ok := st.AddServer(model.MCPServer{Name: "ok", ServerURL: "https://tools.example", ServerType: "http", IsActive: true})
	ws := st.AddServer(model.MCPServer{Name: "ws", ServerURL: "ws://tools.example", ServerType: "websocket", IsActive: true})
	wrongScheme := st.AddServer(model.MCPServer{Name: "bad", ServerURL: "ftp://tools.example", ServerType: "http", IsActive: true})
	inactive := st.AddServer(model.MCPServer{Name: "off", ServerURL: "http://tools.example", ServerType: "http", IsActive: false})
	unknownType := st.AddServer(model.MCPServer{Name: "grpc", ServerURL: "http://tools.example", ServerType: "grpc", IsActive: true})

	tests := []struct {
		name    string
		id      int64
		success bool
		errText string
	}{
		{"http ok", ok.ID, true, ""},
		{"websocket ok", ws.ID, true, ""},
		{"wrong scheme", wrongScheme.ID, false, "Connection refused: ftp://tools.example"},
		{"inactive", inactive.ID, false, "Server is not active"},
		{"unknown type", unknownType.ID, false, "Unsupported server type: grpc"},
		{"missing", 999, false, "Server not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := client.TestMCPServer(ctx, tt.id)
			require.NoError(t, err, "a failed connection is still a 200")
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.errText, res.Error)
		})
	}

	assert.Len(t, st.Servers(), 5, "testing never changes the catalog")
}

// =============================================================================
// FAILURE INJECTION, AUTH, LATENCY
// =============================================================================

func TestServer_FailNext(t *testing.T) {
	srv, client := newTestServer(t, Options{})
	ctx := context.Background()

	srv.FailNext(RouteListChats, http.StatusInternalServerError, "database unavailable")
	srv.FailNext(RouteListChats, http.StatusServiceUnavailable, "")

	_, err := client.ListChats(ctx)
	assert.ErrorIs(t, err, api.ErrServer)
	assert.Equal(t, "database unavailable", api.Detail(err))

	_, err = client.ListChats(ctx)
	assert.ErrorIs(t, err, api.ErrServer)
	assert.Empty(t, api.Detail(err))

	chats, err := client.ListChats(ctx)
	require.NoError(t, err, "injected failures are used once")
	assert.Empty(t, chats)
	assert.Equal(t, 3, srv.Hits(RouteListChats))
}

func TestServer_FailNextDoesNotApply(t *testing.T) {
	srv, client := newTestServer(t, Options{})
	m := activeModel(t, srv)
	c, err := srv.Store().CreateChat(model.ChatDraft{LLMModelID: &m.ID})
	require.NoError(t, err)

	srv.FailNext(RouteSendMessage, http.StatusInternalServerError, "Error sending message: boom")
	_, err = client.SendMessage(context.Background(), c.ID, "hello")
	assert.Equal(t, "Error sending message: boom", api.Detail(err))

	msgs, err := srv.Store().Messages(c.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "an injected failure stores nothing")
}

func TestServer_BearerAuth(t *testing.T) {
	srv, client := newTestServer(t, Options{Token: "secret"})
	ctx := context.Background()

	_, err := client.ListChats(ctx)
	require.NoError(t, err)

	anon := api.NewClient(client.BaseURL())
	_, err = anon.ListChats(ctx)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, "Could not validate credentials", api.Detail(err))

	wrong := api.NewClient(client.BaseURL()).WithToken(api.StaticToken("nope"))
	_, err = wrong.ListChats(ctx)
	assert.ErrorIs(t, err, api.ErrUnauthorized)

	_, err = anon.Health(ctx)
	assert.NoError(t, err, "health is outside the authenticated prefix")
	assert.Equal(t, 1, srv.Hits(RouteListChats), "rejected requests never reach the handler")
}

func TestValidateBearerToken(t *testing.T) {
	assert.True(t, ValidateBearerToken("a", "a"))
	assert.False(t, ValidateBearerToken("a", "b"))
	assert.False(t, ValidateBearerToken("", ""))
	assert.False(t, ValidateBearerToken("a", ""))
}

func TestServer_Health(t *testing.T) {
	_, client := newTestServer(t, Options{})
	h, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
}

func TestServer_LatencyHonorsCancel(t *testing.T) {
	srv, client := newTestServer(t, Options{Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.ListChats(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, api.ErrUnavailable))
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	srv.SetLatency(0)
	_, err = client.ListChats(context.Background())
	assert.NoError(t, err)
}

func TestServer_HeadersAndNotFound(t *testing.T) {
	srv := New(Options{Logger: zerolog.Nop()})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, Prefix+"/nope", nil)
	req.Header.Set("X-Request-Id", "req-123")
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
}

func TestServer_RequestLogging(t *testing.T) {
	var buf strings.Builder
	srv := New(Options{Logger: zerolog.New(&buf)})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Prefix+"/chat/", nil))

	out := buf.String()
	assert.Contains(t, out, `"message":"request completed"`)
	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, `"path":"/api/v1/chat/"`)
}

func TestServer_InjectedPanicRecovers(t *testing.T) {
	var buf strings.Builder
	h := Recovery(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
}

// =============================================================================
// SEED AND LIFECYCLE
// =============================================================================

func TestStore_Seed(t *testing.T) {
	st := NewStore(nil)
	st.Seed()

	assert.Len(t, st.Models(), 3)
	assert.Len(t, model.ActiveOnly(st.Models()), 2)
	assert.Len(t, st.Servers(), 2)

	chats := st.Chats()
	require.Len(t, chats, 1)
	msgs, err := st.Messages(chats[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	srv := New(Options{Logger: zerolog.Nop()})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	client := api.NewClient("http://" + ln.Addr().String() + Prefix)
	require.Eventually(t, func() bool {
		_, err := client.Health(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}
