// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// SuccessDuration is how long a success toast stays up.
const SuccessDuration = 4 * time.Second

// ErrorDuration is longer so failures can be read.
const ErrorDuration = 8 * time.Second

// Toast is one visible notification.
type Toast struct {
	ID        int
	Kind      Kind
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired reports whether the toast should be dismissed at now.
func (t Toast) IsExpired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// Remaining returns the time left before auto-dismiss.
func (t Toast) Remaining(now time.Time) time.Duration {
	if r := t.Duration - now.Sub(t.CreatedAt); r > 0 {
		return r
	}
	return 0
}

// =============================================================================
// TOAST QUEUE
// =============================================================================

// Toasts is a bounded, newest-first queue of toasts. It implements Sink and
// is safe for concurrent use, since reports may arrive from fetch goroutines.
type Toasts struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	max    int
	now    func() time.Time
}

// NewToasts creates a queue showing at most five toasts.
func NewToasts() *Toasts {
	return &Toasts{nextID: 1, max: 5, now: time.Now}
}

func (q *Toasts) Success(msg string) { q.add(KindSuccess, msg, SuccessDuration) }
func (q *Toasts) Error(msg string)   { q.add(KindError, msg, ErrorDuration) }

// Info adds an informational toast.
func (q *Toasts) Info(msg string) { q.add(KindInfo, msg, SuccessDuration) }

func (q *Toasts) add(kind Kind, msg string, d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := Toast{ID: q.nextID, Kind: kind, Message: msg, CreatedAt: q.now(), Duration: d}
	q.nextID++
	q.toasts = append([]Toast{t}, q.toasts...)
	if len(q.toasts) > q.max {
		q.toasts = q.toasts[:q.max]
	}
}

// Dismiss removes a toast by id.
func (q *Toasts) Dismiss(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			return
		}
	}
}

// DismissNewest removes the most recent toast.
func (q *Toasts) DismissNewest() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.toasts) > 0 {
		q.toasts = q.toasts[1:]
	}
}

// Tick drops expired toasts and returns the rest.
func (q *Toasts) Tick() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	active := q.toasts[:0]
	for _, t := range q.toasts {
		if !t.IsExpired(now) {
			active = append(active, t)
		}
	}
	q.toasts = active
	return q.snapshot()
}

// Active returns a copy of the current toasts, newest first.
func (q *Toasts) Active() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

func (q *Toasts) snapshot() []Toast {
	out := make([]Toast, len(q.toasts))
	copy(out, q.toasts)
	return out
}

// =============================================================================
// TICK MESSAGES
// =============================================================================

// TickMsg drives toast expiry in the TUI.
type TickMsg struct {
	Time time.Time
}

// TickCmd schedules the next toast tick.
func TickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
