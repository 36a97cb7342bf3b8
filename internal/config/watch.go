// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultWatchDebounce collapses the burst of events an editor save emits.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
//
// The parent directory is watched rather than the file itself because most
// editors save by writing a temp file and renaming it over the original,
// which drops a watch held on the old inode.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config)
	logger   zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
	once  sync.Once
}

// Watch starts watching path. onChange receives each successfully loaded
// config; invalid edits are logged and skipped so the running config stays.
func Watch(path string, debounce time.Duration, logger zerolog.Logger, onChange func(*Config)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.With().Str("component", "config-watch").Logger(),
		watcher:  fw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload rejected")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
