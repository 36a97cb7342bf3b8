// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// LLM MODEL ENDPOINTS (admin)
// =============================================================================

const modelsPath = "/admin/llm-models"

func modelPath(id int64) string { return fmt.Sprintf("%s/%d", modelsPath, id) }

// ListLLMModels returns every configured model, active or not.
func (c *Client) ListLLMModels(ctx context.Context) ([]model.LLMModel, error) {
	var out []model.LLMModel
	if err := c.do(ctx, http.MethodGet, modelsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLLMModel returns one model.
func (c *Client) GetLLMModel(ctx context.Context, id int64) (*model.LLMModel, error) {
	var out model.LLMModel
	if err := c.do(ctx, http.MethodGet, modelPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateLLMModel creates a model.
func (c *Client) CreateLLMModel(ctx context.Context, draft model.LLMModelDraft) (*model.LLMModel, error) {
	var out model.LLMModel
	if err := c.do(ctx, http.MethodPost, modelsPath, draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateLLMModel applies patch to a model.
func (c *Client) UpdateLLMModel(ctx context.Context, id int64, patch model.LLMModelDraft) (*model.LLMModel, error) {
	var out model.LLMModel
	if err := c.do(ctx, http.MethodPut, modelPath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteLLMModel deletes a model.
func (c *Client) DeleteLLMModel(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, modelPath(id), nil, nil)
}

// =============================================================================
// MCP SERVER ENDPOINTS (admin)
// =============================================================================

const serversPath = "/admin/mcp-servers"

func serverPath(id int64) string { return fmt.Sprintf("%s/%d", serversPath, id) }

// ListMCPServers returns every configured server, active or not.
func (c *Client) ListMCPServers(ctx context.Context) ([]model.MCPServer, error) {
	var out []model.MCPServer
	if err := c.do(ctx, http.MethodGet, serversPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMCPServer returns one server.
func (c *Client) GetMCPServer(ctx context.Context, id int64) (*model.MCPServer, error) {
	var out model.MCPServer
	if err := c.do(ctx, http.MethodGet, serverPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMCPServer creates a server.
func (c *Client) CreateMCPServer(ctx context.Context, draft model.MCPServerDraft) (*model.MCPServer, error) {
	var out model.MCPServer
	if err := c.do(ctx, http.MethodPost, serversPath, draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMCPServer applies patch to a server.
func (c *Client) UpdateMCPServer(ctx context.Context, id int64, patch model.MCPServerDraft) (*model.MCPServer, error) {
	var out model.MCPServer
	if err := c.do(ctx, http.MethodPut, serverPath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMCPServer deletes a server.
func (c *Client) DeleteMCPServer(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, serverPath(id), nil, nil)
}

// TestMCPServer asks the backend to try connecting to a server. A failed
// connection is a normal result with Success false.
func (c *Client) TestMCPServer(ctx context.Context, id int64) (*model.TestResult, error) {
	var out model.TestResult
	if err := c.do(ctx, http.MethodPost, serverPath(id)+"/test", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
