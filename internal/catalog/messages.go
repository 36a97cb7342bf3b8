// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/model"
)

// MutatedMsg is the result of a create, update or delete. Entity is nil
// for deletes.
type MutatedMsg[E model.Entity] struct {
	Kind   cache.Kind
	Op     Op
	ID     int64
	Entity *E
	Err    error

	scope uint64 // controller scope generation at request time
}

// TestedMsg is the result of a connection test.
type TestedMsg struct {
	Kind   cache.Kind
	ID     int64
	Result *model.TestResult
	Err    error

	scope uint64
}

// LoadedMsg is the result of a list load. On error the cache has already
// reported the failure.
type LoadedMsg struct {
	Kind cache.Kind
	Err  error
}
