// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToasts_NewestFirstAndBounded(t *testing.T) {
	q := NewToasts()
	for i := 0; i < 7; i++ {
		q.Success("ok")
	}
	q.Error("boom")

	active := q.Active()
	require.Len(t, active, 5)
	assert.Equal(t, KindError, active[0].Kind)
	assert.Equal(t, "boom", active[0].Message)
}

func TestToasts_TickExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewToasts()
	q.now = func() time.Time { return now }

	q.Success("short")
	q.Error("long")

	now = now.Add(SuccessDuration)
	active := q.Tick()
	require.Len(t, active, 1)
	assert.Equal(t, "long", active[0].Message)
	assert.Equal(t, ErrorDuration-SuccessDuration, active[0].Remaining(now))

	now = now.Add(ErrorDuration)
	assert.Empty(t, q.Tick())
}

func TestToasts_Dismiss(t *testing.T) {
	q := NewToasts()
	q.Info("a")
	q.Info("b")
	first := q.Active()[1]

	q.Dismiss(first.ID)
	require.Len(t, q.Active(), 1)
	assert.Equal(t, "b", q.Active()[0].Message)

	q.DismissNewest()
	assert.Empty(t, q.Active())
	q.DismissNewest()
}

func TestToasts_ConcurrentReports(t *testing.T) {
	q := NewToasts()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); q.Error("x") }()
		go func() { defer wg.Done(); _ = q.Tick() }()
	}
	wg.Wait()
	assert.LessOrEqual(t, len(q.Active()), 5)
}

func TestRecorderAndMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	sink := Multi(a, nil, b)

	sink.Success("saved")
	sink.Error("failed")

	for _, r := range []*Recorder{a, b} {
		assert.Equal(t, []string{"saved"}, r.Successes())
		assert.Equal(t, []string{"failed"}, r.Errors())
		assert.Len(t, r.Entries(), 2)
	}

	a.Reset()
	assert.Empty(t, a.Entries())
	Discard.Error("ignored")
}
