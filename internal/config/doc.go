// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, validation, and an optional file watcher for hot reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Backend base URL, timeout and client-side rate limit
//   - AuthConfig: Bearer token or token file
//   - CacheConfig: Warm-start snapshot settings
//   - LogConfig: Log level, format and destination
//   - Watcher: Debounced fsnotify watcher that reloads on change
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PARLEY_*)
//   - ~/.parley/config.toml (or the path given with --config)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	client := api.NewClient(cfg.Server.BaseURL)
package config
