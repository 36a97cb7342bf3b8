// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// ENTITY CONSTRAINT
// =============================================================================

// Entity is implemented by catalog records that can be listed, edited and
// offered for selection.
type Entity interface {
	EntityID() int64
	EntityName() string
	Active() bool
}

// ActiveOnly returns the entities with is_active set, preserving order.
func ActiveOnly[E Entity](list []E) []E {
	out := make([]E, 0, len(list))
	for _, e := range list {
		if e.Active() {
			out = append(out, e)
		}
	}
	return out
}

// FindEntity returns the entity with the given id.
func FindEntity[E Entity](list []E, id int64) (E, bool) {
	for _, e := range list {
		if e.EntityID() == id {
			return e, true
		}
	}
	var zero E
	return zero, false
}

// UpsertEntity replaces the entity with the same id, or appends it. The input
// slice is never modified.
func UpsertEntity[E Entity](list []E, e E) []E {
	out := make([]E, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if existing.EntityID() == e.EntityID() {
			out = append(out, e)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, e)
	}
	return out
}

// RemoveEntity returns list without the entity with the given id.
func RemoveEntity[E Entity](list []E, id int64) []E {
	out := make([]E, 0, len(list))
	for _, e := range list {
		if e.EntityID() != id {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// LLM MODEL
// =============================================================================

// LLMModel is a configured language model the platform can route chats to.
type LLMModel struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Provider      string         `json:"provider"`
	ModelName     string         `json:"model_name"`
	Description   string         `json:"description,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     Timestamp      `json:"created_at"`
	UpdatedAt     *Timestamp     `json:"updated_at,omitempty"`
}

func (m LLMModel) EntityID() int64    { return m.ID }
func (m LLMModel) EntityName() string { return m.Name }
func (m LLMModel) Active() bool       { return m.IsActive }

// Draft clones the model into an editable draft.
func (m LLMModel) Draft() LLMModelDraft {
	active := m.IsActive
	return LLMModelDraft{
		Name:          m.Name,
		Provider:      m.Provider,
		ModelName:     m.ModelName,
		Description:   m.Description,
		Configuration: cloneConfig(m.Configuration),
		IsActive:      &active,
	}
}

// LLMModelDraft is the form shape for creating or updating a model. Update
// requests send every field; a nil IsActive leaves the flag unchanged.
type LLMModelDraft struct {
	Name          string         `json:"name"`
	Provider      string         `json:"provider"`
	ModelName     string         `json:"model_name"`
	Description   string         `json:"description"`
	Configuration map[string]any `json:"configuration,omitempty"`
	IsActive      *bool          `json:"is_active,omitempty"`
}

// Validate checks the fields the backend requires.
func (d LLMModelDraft) Validate() error {
	var errs ValidationErrors
	errs.require("name", d.Name)
	errs.require("provider", d.Provider)
	errs.require("model_name", d.ModelName)
	return errs.Err()
}

// =============================================================================
// MCP SERVER
// =============================================================================

// MCPServer is a tool server that chats can attach to.
type MCPServer struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	ServerURL     string         `json:"server_url"`
	ServerType    string         `json:"server_type"`
	Configuration map[string]any `json:"configuration,omitempty"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     Timestamp      `json:"created_at"`
	UpdatedAt     *Timestamp     `json:"updated_at,omitempty"`
}

func (s MCPServer) EntityID() int64    { return s.ID }
func (s MCPServer) EntityName() string { return s.Name }
func (s MCPServer) Active() bool       { return s.IsActive }

// Draft clones the server into an editable draft.
func (s MCPServer) Draft() MCPServerDraft {
	active := s.IsActive
	return MCPServerDraft{
		Name:          s.Name,
		Description:   s.Description,
		ServerURL:     s.ServerURL,
		ServerType:    s.ServerType,
		Configuration: cloneConfig(s.Configuration),
		IsActive:      &active,
	}
}

// MCPServerDraft is the form shape for creating or updating a server.
type MCPServerDraft struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	ServerURL     string         `json:"server_url"`
	ServerType    string         `json:"server_type"`
	Configuration map[string]any `json:"configuration,omitempty"`
	IsActive      *bool          `json:"is_active,omitempty"`
}

// Validate checks the fields the backend requires.
func (d MCPServerDraft) Validate() error {
	var errs ValidationErrors
	errs.require("name", d.Name)
	errs.require("server_url", d.ServerURL)
	errs.require("server_type", d.ServerType)
	return errs.Err()
}

// TestResult is the outcome of a server connection test. A failed test is a
// normal result, not a transport error.
type TestResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	ServerName string `json:"server_name,omitempty"`
	ServerURL  string `json:"server_url,omitempty"`
	ServerType string `json:"server_type,omitempty"`
}

// =============================================================================
// CONFIGURATION HELPERS
// =============================================================================

// cloneConfig deep-copies a configuration map so edits to a draft never
// reach the cached entity.
func cloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		out := make(map[string]any, len(cfg))
		for k, v := range cfg {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// ParseConfiguration decodes a JSON object typed into a form field. Blank
// input yields nil.
func ParseConfiguration(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(text), &cfg); err != nil {
		return nil, &ValidationError{Field: "configuration", Message: "must be a JSON object"}
	}
	return cfg, nil
}

// FormatConfiguration renders a configuration map as indented JSON.
func FormatConfiguration(cfg map[string]any) string {
	if len(cfg) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
