// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// LocalIDs issues identifiers for locally authored messages. IDs are ULIDs:
// clock-based, strictly increasing within one source even when the clock
// stalls or steps backwards, and never reused.
type LocalIDs struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
	last    ulid.ULID
}

// NewLocalIDs creates a source reading time from now. A nil now uses
// time.Now.
func NewLocalIDs(now func() time.Time) *LocalIDs {
	if now == nil {
		now = time.Now
	}
	return &LocalIDs{
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Next returns a new identifier greater than every one issued before.
func (g *LocalIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(g.now())
	if last := g.last.Time(); ms < last {
		ms = last
	}
	for {
		id, err := ulid.New(ms, g.entropy)
		if err == nil && id.Compare(g.last) > 0 {
			g.last = id
			return id.String()
		}
		// Entropy exhausted for this millisecond; move to the next one.
		ms++
	}
}
