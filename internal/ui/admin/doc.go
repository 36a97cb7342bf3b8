// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package admin implements the administration tab: one panel per resource
// catalog, each a list with a filter, a create/edit form and a delete
// confirmation, driven by a catalog.Controller.
//
// # Key Types
//
//   - Panel: the list, form and prompt for one catalog
//   - Schema: how a catalog's entities become rows and its drafts become
//     form fields
//   - Model: the tabbed container for the models and servers panels
//
// # Usage
//
//	m := admin.New(models, servers, theme)
//	cmd := m.Init() // loads both lists
//	m, cmd = m.Update(msg)
package admin
