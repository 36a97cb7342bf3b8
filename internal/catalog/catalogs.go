// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"

	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/model"
)

// Models is the LLM model catalog.
type Models = Controller[model.LLMModel, model.LLMModelDraft]

// Servers is the MCP server catalog.
type Servers = Controller[model.MCPServer, model.MCPServerDraft]

// ModelsAPI is the backend surface of the LLM model catalog.
type ModelsAPI interface {
	ListLLMModels(ctx context.Context) ([]model.LLMModel, error)
	CreateLLMModel(ctx context.Context, draft model.LLMModelDraft) (*model.LLMModel, error)
	UpdateLLMModel(ctx context.Context, id int64, patch model.LLMModelDraft) (*model.LLMModel, error)
	DeleteLLMModel(ctx context.Context, id int64) error
}

// ServersAPI is the backend surface of the MCP server catalog.
type ServersAPI interface {
	ListMCPServers(ctx context.Context) ([]model.MCPServer, error)
	CreateMCPServer(ctx context.Context, draft model.MCPServerDraft) (*model.MCPServer, error)
	UpdateMCPServer(ctx context.Context, id int64, patch model.MCPServerDraft) (*model.MCPServer, error)
	DeleteMCPServer(ctx context.Context, id int64) error
	TestMCPServer(ctx context.Context, id int64) (*model.TestResult, error)
}

// NewModels creates the LLM model catalog.
func NewModels(backend ModelsAPI, opts Options) *Models {
	return New(Config[model.LLMModel, model.LLMModelDraft]{
		Kind: cache.KindModels,
		Noun: "LLM model",
		Endpoints: Endpoints[model.LLMModel, model.LLMModelDraft]{
			List:   backend.ListLLMModels,
			Create: backend.CreateLLMModel,
			Update: backend.UpdateLLMModel,
			Delete: backend.DeleteLLMModel,
		},
		NewDraft:   newModelDraft,
		FromEntity: model.LLMModel.Draft,
	}, opts)
}

// NewServers creates the MCP server catalog.
func NewServers(backend ServersAPI, opts Options) *Servers {
	return New(Config[model.MCPServer, model.MCPServerDraft]{
		Kind: cache.KindServers,
		Noun: "MCP server",
		Endpoints: Endpoints[model.MCPServer, model.MCPServerDraft]{
			List:   backend.ListMCPServers,
			Create: backend.CreateMCPServer,
			Update: backend.UpdateMCPServer,
			Delete: backend.DeleteMCPServer,
			Test:   backend.TestMCPServer,
		},
		NewDraft:   newServerDraft,
		FromEntity: model.MCPServer.Draft,
	}, opts)
}

func newModelDraft() model.LLMModelDraft {
	active := true
	return model.LLMModelDraft{IsActive: &active}
}

// newServerDraft defaults to the HTTP transport; the backend also accepts
// "websocket".
func newServerDraft() model.MCPServerDraft {
	active := true
	return model.MCPServerDraft{ServerType: "http", IsActive: &active}
}
