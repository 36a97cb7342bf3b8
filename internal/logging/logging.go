// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger used across parley.
//
// The TUI owns the terminal, so logs go to a file by default. The REPL and
// the fake API server may log to stderr instead.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/config"
)

// Stderr is the LogConfig.Path value that selects standard error.
const Stderr = "stderr"

// New builds a logger from cfg. The returned closer releases the log file
// and is never nil.
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Path {
	case "", Stderr:
		out = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.Path != "" && cfg.Path != Stderr}
	}

	// The level is process-wide so a config reload can lower it as well
	// as raise it.
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(out).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// ApplyLevel changes the process-wide minimum level, used when the config
// file is edited while running.
func ApplyLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
