// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/model"
)

// Field is one form input bound to a draft field.
type Field[D catalog.Draft] struct {
	Label       string
	Placeholder string
	// JSON marks the configuration field, which gets a highlighted
	// preview under the form.
	JSON bool
	Get  func(D) string
	Set  func(D, string) (D, error)
}

// Column is one list column.
type Column[E model.Entity] struct {
	Title string
	Width int
	Value func(E) string
}

// Schema maps a catalog onto rows and form fields.
type Schema[E model.Entity, D catalog.Draft] struct {
	Title   string
	Columns []Column[E]
	Fields  []Field[D]
}

// =============================================================================
// LLM MODELS
// =============================================================================

// ModelSchema lays out the LLM model catalog.
func ModelSchema() Schema[model.LLMModel, model.LLMModelDraft] {
	type D = model.LLMModelDraft
	return Schema[model.LLMModel, model.LLMModelDraft]{
		Title: "LLM Models",
		Columns: []Column[model.LLMModel]{
			{Title: "Name", Width: 20, Value: func(m model.LLMModel) string { return m.Name }},
			{Title: "Provider", Width: 12, Value: func(m model.LLMModel) string { return m.Provider }},
			{Title: "Model", Width: 24, Value: func(m model.LLMModel) string { return m.ModelName }},
		},
		Fields: []Field[D]{
			{
				Label: "Name", Placeholder: "GPT-4o",
				Get: func(d D) string { return d.Name },
				Set: func(d D, v string) (D, error) { d.Name = strings.TrimSpace(v); return d, nil },
			},
			{
				Label: "Provider", Placeholder: "openai",
				Get: func(d D) string { return d.Provider },
				Set: func(d D, v string) (D, error) { d.Provider = strings.TrimSpace(v); return d, nil },
			},
			{
				Label: "Model name", Placeholder: "gpt-4o",
				Get: func(d D) string { return d.ModelName },
				Set: func(d D, v string) (D, error) { d.ModelName = strings.TrimSpace(v); return d, nil },
			},
			{
				Label: "Description",
				Get:   func(d D) string { return d.Description },
				Set:   func(d D, v string) (D, error) { d.Description = v; return d, nil },
			},
			{
				Label: "Configuration", Placeholder: `{"temperature": 0.7}`, JSON: true,
				Get: func(d D) string { return compactConfig(d.Configuration) },
				Set: func(d D, v string) (D, error) {
					cfg, err := model.ParseConfiguration(v)
					d.Configuration = cfg
					return d, err
				},
			},
			{
				Label: "Active", Placeholder: "yes",
				Get: func(d D) string { return formatBool(d.IsActive) },
				Set: func(d D, v string) (D, error) {
					b, err := parseBool(v)
					d.IsActive = b
					return d, err
				},
			},
		},
	}
}

// =============================================================================
// MCP SERVERS
// =============================================================================

// ServerSchema lays out the MCP server catalog.
func ServerSchema() Schema[model.MCPServer, model.MCPServerDraft] {
	type D = model.MCPServerDraft
	return Schema[model.MCPServer, model.MCPServerDraft]{
		Title: "MCP Servers",
		Columns: []Column[model.MCPServer]{
			{Title: "Name", Width: 20, Value: func(s model.MCPServer) string { return s.Name }},
			{Title: "Type", Width: 10, Value: func(s model.MCPServer) string { return s.ServerType }},
			{Title: "URL", Width: 32, Value: func(s model.MCPServer) string { return s.ServerURL }},
		},
		Fields: []Field[D]{
			{
				Label: "Name", Placeholder: "search",
				Get: func(d D) string { return d.Name },
				Set: func(d D, v string) (D, error) { d.Name = strings.TrimSpace(v); return d, nil },
			},
			{
				Label: "Description",
				Get:   func(d D) string { return d.Description },
				Set:   func(d D, v string) (D, error) { d.Description = v; return d, nil },
			},
			{
				Label: "Server URL", Placeholder: "https://mcp.example.com",
				Get: func(d D) string { return d.ServerURL },
				Set: func(d D, v string) (D, error) { d.ServerURL = strings.TrimSpace(v); return d, nil },
			},
			{
				Label: "Type", Placeholder: "http or websocket",
				Get: func(d D) string { return d.ServerType },
				Set: func(d D, v string) (D, error) { d.ServerType = strings.ToLower(strings.TrimSpace(v)); return d, nil },
			},
			{
				Label: "Configuration", Placeholder: `{"timeout": 30}`, JSON: true,
				Get: func(d D) string { return compactConfig(d.Configuration) },
				Set: func(d D, v string) (D, error) {
					cfg, err := model.ParseConfiguration(v)
					d.Configuration = cfg
					return d, err
				},
			},
			{
				Label: "Active", Placeholder: "yes",
				Get: func(d D) string { return formatBool(d.IsActive) },
				Set: func(d D, v string) (D, error) {
					b, err := parseBool(v)
					d.IsActive = b
					return d, err
				},
			},
		},
	}
}

// =============================================================================
// FIELD HELPERS
// =============================================================================

// compactConfig renders a configuration map on one line for a text input.
func compactConfig(cfg map[string]any) string {
	text := model.FormatConfiguration(cfg)
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return text
	}
	return buf.String()
}

func formatBool(b *bool) string {
	if b == nil || *b {
		return "yes"
	}
	return "no"
}

// parseBool accepts yes/no style answers. Blank means yes.
func parseBool(v string) (*bool, error) {
	var b bool
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "y", "yes", "true", "1", "on":
		b = true
	case "n", "no", "false", "0", "off":
		b = false
	default:
		return nil, &model.ValidationError{Field: "is_active", Message: "must be yes or no"}
	}
	return &b, nil
}
