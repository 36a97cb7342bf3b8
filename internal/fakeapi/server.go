// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/model"
)

// Prefix is mounted in front of every API route. /health sits outside it.
const Prefix = "/api/v1"

// Route names accepted by FailNext. They are the method plus the chi
// pattern relative to Prefix.
const (
	RouteListChats    = "GET /chat/"
	RouteGetChat      = "GET /chat/{id}"
	RouteCreateChat   = "POST /chat/"
	RouteDeleteChat   = "DELETE /chat/{id}"
	RouteListMessages = "GET /chat/{id}/messages"
	RouteSendMessage  = "POST /chat/{id}/messages"

	RouteListModels  = "GET /admin/llm-models"
	RouteGetModel    = "GET /admin/llm-models/{id}"
	RouteCreateModel = "POST /admin/llm-models"
	RouteUpdateModel = "PUT /admin/llm-models/{id}"
	RouteDeleteModel = "DELETE /admin/llm-models/{id}"

	RouteListServers  = "GET /admin/mcp-servers"
	RouteGetServer    = "GET /admin/mcp-servers/{id}"
	RouteCreateServer = "POST /admin/mcp-servers"
	RouteUpdateServer = "PUT /admin/mcp-servers/{id}"
	RouteDeleteServer = "DELETE /admin/mcp-servers/{id}"
	RouteTestServer   = "POST /admin/mcp-servers/{id}/test"

	RouteHealth = "GET /health"
)

// Options configures a Server.
type Options struct {
	// Token, when set, is required as a bearer token on API routes.
	Token string

	// Latency delays every API handler, to make in-flight states visible.
	Latency time.Duration

	Logger zerolog.Logger

	// Now is the store clock. Nil uses time.Now.
	Now func() time.Time
}

// failure is one queued injected error.
type failure struct {
	status int
	detail string
}

// Server is the in-memory backend.
type Server struct {
	opts   Options
	store  *Store
	router chi.Router
	logger zerolog.Logger

	mu       sync.Mutex
	failures map[string][]failure
	hits     map[string]int
	latency  atomic.Int64

	httpServer *http.Server
}

// New creates a server with an empty store.
func New(opts Options) *Server {
	s := &Server{
		opts:     opts,
		store:    NewStore(opts.Now),
		logger:   opts.Logger.With().Str("component", "fakeapi").Logger(),
		failures: make(map[string][]failure),
		hits:     make(map[string]int),
	}
	s.latency.Store(int64(opts.Latency))
	s.router = s.routes()
	return s
}

// Store returns the backing store, for seeding and assertions.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetLatency changes the per-request delay.
func (s *Server) SetLatency(d time.Duration) {
	s.latency.Store(int64(d))
}

// FailNext makes the next request to route fail with status and a
// {"detail": detail} body. Calls queue up; each injected failure is used
// once. An empty detail sends the bare status.
func (s *Server) FailNext(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, detail: detail})
}

// Hits returns how many requests reached route, injected failures included.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(EchoRequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(Recovery(s.logger))
	r.Use(SecurityHeaders)

	r.Get("/health", s.handle(RouteHealth, s.handleHealth))

	r.Route(Prefix, func(r chi.Router) {
		r.Use(BearerAuth(s.opts.Token, s.logger))

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", s.handle(RouteListChats, s.handleListChats))
			r.Post("/", s.handle(RouteCreateChat, s.handleCreateChat))
			r.Get("/{id}", s.handle(RouteGetChat, s.handleGetChat))
			r.Delete("/{id}", s.handle(RouteDeleteChat, s.handleDeleteChat))
			r.Get("/{id}/messages", s.handle(RouteListMessages, s.handleListMessages))
			r.Post("/{id}/messages", s.handle(RouteSendMessage, s.handleSendMessage))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/llm-models", s.handle(RouteListModels, s.handleListModels))
			r.Post("/llm-models", s.handle(RouteCreateModel, s.handleCreateModel))
			r.Get("/llm-models/{id}", s.handle(RouteGetModel, s.handleGetModel))
			r.Put("/llm-models/{id}", s.handle(RouteUpdateModel, s.handleUpdateModel))
			r.Delete("/llm-models/{id}", s.handle(RouteDeleteModel, s.handleDeleteModel))

			r.Get("/mcp-servers", s.handle(RouteListServers, s.handleListServers))
			r.Post("/mcp-servers", s.handle(RouteCreateServer, s.handleCreateServer))
			r.Get("/mcp-servers/{id}", s.handle(RouteGetServer, s.handleGetServer))
			r.Put("/mcp-servers/{id}", s.handle(RouteUpdateServer, s.handleUpdateServer))
			r.Delete("/mcp-servers/{id}", s.handle(RouteDeleteServer, s.handleDeleteServer))
			r.Post("/mcp-servers/{id}/test", s.handle(RouteTestServer, s.handleTestServer))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// handle wraps a handler with hit counting, latency and failure injection.
func (s *Server) handle(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if route != RouteHealth {
			if d := time.Duration(s.latency.Load()); d > 0 {
				select {
				case <-time.After(d):
				case <-r.Context().Done():
					return
				}
			}
		}

		s.mu.Lock()
		s.hits[route]++
		var injected *failure
		if q := s.failures[route]; len(q) > 0 {
			injected = &q[0]
			s.failures[route] = q[1:]
		}
		s.mu.Unlock()

		if injected != nil {
			s.logger.Debug().Str("route", route).Int("status", injected.status).Msg("injected failure")
			if injected.detail == "" {
				w.WriteHeader(injected.status)
				return
			}
			writeDetail(w, injected.status, injected.detail)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		h(w, r)
	}
}

// ============================================================================
// CHAT HANDLERS
// ============================================================================

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Chats())
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.store.Chat(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var draft model.ChatDraft
	if !decode(w, r, &draft) {
		return
	}
	c, err := s.store.CreateChat(draft)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteChat(id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted successfully"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	msgs, err := s.store.Messages(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Content == "" {
		writeValidation(w, "content", "Field required")
		return
	}
	res, err := s.store.SendMessage(id, body.Content)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ============================================================================
// ADMIN HANDLERS
// ============================================================================

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Models())
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := s.store.Model(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var draft model.LLMModelDraft
	if !decode(w, r, &draft) {
		return
	}
	m, err := s.store.CreateModel(draft)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch model.LLMModelDraft
	if !decode(w, r, &patch) {
		return
	}
	m, err := s.store.UpdateModel(id, patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteModel(id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "LLM model deleted successfully"})
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Servers())
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	srv, err := s.store.Server(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var draft model.MCPServerDraft
	if !decode(w, r, &draft) {
		return
	}
	srv, err := s.store.CreateServer(draft)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch model.MCPServerDraft
	if !decode(w, r, &patch) {
		return
	}
	srv, err := s.store.UpdateServer(id, patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteServer(id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "MCP server deleted successfully"})
}

// handleTestServer always answers 200; a failed connection is reported in
// the body.
func (s *Server) handleTestServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.TestServer(id))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves on addr until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server started")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info().Msg("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the backend's error envelope.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeValidation writes a schema validation failure for one body field.
func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{
			"loc":  []string{"body", field},
			"msg":  msg,
			"type": "value_error",
		}},
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	var ves model.ValidationErrors
	switch {
	case errors.Is(err, ErrChatNotFound), errors.Is(err, ErrModelNotFound), errors.Is(err, ErrServerNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ves) && len(ves) > 0:
		writeValidation(w, ves[0].Field, "Field required")
	case errors.As(err, &ve):
		writeValidation(w, ve.Field, ve.Message)
	default:
		writeDetail(w, http.StatusBadRequest, err.Error())
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeValidation(w, "id", "Input should be a valid integer")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return false
		}
		writeDetail(w, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}
