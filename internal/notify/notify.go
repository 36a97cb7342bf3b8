// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify carries user-facing success and failure reports from the
// controllers to whatever surface displays them.
//
// # Key Types
//
//   - Sink: The interface controllers report through
//   - Toasts: Auto-dismissing toast queue rendered by the TUI
//   - LogSink: Sink that writes to a zerolog logger
//   - Recorder: Sink that records reports, for tests
//   - Multi: Fan-out to several sinks
//
// # Usage
//
//	toasts := notify.NewToasts()
//	sink := notify.Multi(toasts, notify.NewLogSink(logger))
//	ctrl := session.New(client, resources, sink, session.DefaultConfig())
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Kind classifies a notification.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "info"
	}
}

// Sink receives user-facing reports. Implementations must be safe to call
// from any goroutine.
type Sink interface {
	Success(message string)
	Error(message string)
}

// =============================================================================
// DISCARD / MULTI
// =============================================================================

type discard struct{}

func (discard) Success(string) {}
func (discard) Error(string)   {}

// Discard drops every report.
var Discard Sink = discard{}

type multi []Sink

func (m multi) Success(msg string) {
	for _, s := range m {
		s.Success(msg)
	}
}

func (m multi) Error(msg string) {
	for _, s := range m {
		s.Error(msg)
	}
}

// Multi fans reports out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// LOG SINK
// =============================================================================

// LogSink writes reports to a logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink wraps logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *LogSink) Success(msg string) { s.logger.Info().Msg(msg) }
func (s *LogSink) Error(msg string)   { s.logger.Warn().Msg(msg) }

// =============================================================================
// RECORDER
// =============================================================================

// Entry is one recorded report.
type Entry struct {
	Kind    Kind
	Message string
}

// Recorder keeps every report in order.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Success(msg string) { r.add(KindSuccess, msg) }
func (r *Recorder) Error(msg string)   { r.add(KindError, msg) }

func (r *Recorder) add(kind Kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Kind: kind, Message: msg})
}

// Entries returns a copy of everything recorded.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the recorded messages of the given kind.
func (r *Recorder) Messages(kind Kind) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Kind == kind {
			out = append(out, e.Message)
		}
	}
	return out
}

// Errors returns the recorded error messages.
func (r *Recorder) Errors() []string { return r.Messages(KindError) }

// Successes returns the recorded success messages.
func (r *Recorder) Successes() []string { return r.Messages(KindSuccess) }

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
