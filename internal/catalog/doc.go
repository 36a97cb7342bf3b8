// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog implements the administrative create/update/delete
// workflow shared by the LLM model and MCP server catalogs.
//
// One generic Controller is instanced per catalog. Each instance owns its
// own modal, draft and in-flight flags; nothing is shared between
// instances. Create, update and delete share one in-flight flag, so a
// second submission while one is pending is rejected rather than queued.
// Connection tests have a separate flag and never touch the cached list.
//
// Like the session controller, a Controller is mutated only from the
// Update loop. Remote calls run in tea.Cmds and come back as MutatedMsg
// and TestedMsg values.
//
// # Key Types
//
//   - Controller: Generic CRUD workflow with modal lifecycle
//   - Models, Servers: The two catalog instances
//   - Modal: Open/closed state, mode and working draft
//   - MutatedMsg, TestedMsg, LoadedMsg: Results of remote calls
//
// # Usage
//
//	models := catalog.NewModels(client, catalog.Options{Cache: store, Sink: toasts})
//	models.OpenCreate()
//	models.SetDraft(draft)
//	cmd, err := models.Submit()
//
//	servers := catalog.NewServers(client, opts)
//	cmd, err = servers.Delete(id, func(prompt string) bool { return ask(prompt) })
//	cmd, err = servers.TestConnection(id)
package catalog
