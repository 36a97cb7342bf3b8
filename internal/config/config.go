// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete parley configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Auth   AuthConfig   `toml:"auth"`
	Chat   ChatConfig   `toml:"chat"`
	Cache  CacheConfig  `toml:"cache"`
	Log    LogConfig    `toml:"log"`
	UI     UIConfig     `toml:"ui"`
}

// ServerConfig describes how to reach the platform API.
type ServerConfig struct {
	// BaseURL includes the API prefix, e.g. http://localhost:8000/api/v1.
	BaseURL     string  `toml:"base_url"`
	TimeoutSecs int     `toml:"timeout_secs"`
	RateLimit   float64 `toml:"rate_limit"` // requests per second, 0 disables
	RateBurst   int     `toml:"rate_burst"`
}

// Timeout returns the request timeout as a duration.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// AuthConfig holds the bearer token. TokenFile wins over Token when both are
// set so the secret can live outside the config file.
type AuthConfig struct {
	Token     string `toml:"token"`
	TokenFile string `toml:"token_file"`
}

// ChatConfig holds new-chat defaults.
type ChatConfig struct {
	DefaultTitle   string `toml:"default_title"`
	DefaultModelID int64  `toml:"default_model_id"`
}

// CacheConfig controls warm-start snapshots of the resource cache.
type CacheConfig struct {
	SnapshotEnabled bool   `toml:"snapshot_enabled"`
	SnapshotPath    string `toml:"snapshot_path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // console or json
	Path   string `toml:"path"`   // file path, or "stderr"
}

// UIConfig controls terminal presentation.
type UIConfig struct {
	Theme    string `toml:"theme"` // dark, light, auto
	NoColor  bool   `toml:"no_color"`
	Markdown bool   `toml:"markdown"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultBaseURL is the local development backend.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	return &Config{
		Server: ServerConfig{
			BaseURL:     DefaultBaseURL,
			TimeoutSecs: 60,
			RateLimit:   10,
			RateBurst:   20,
		},
		Chat: ChatConfig{
			DefaultTitle: "New Chat",
		},
		Cache: CacheConfig{
			SnapshotEnabled: true,
			SnapshotPath:    filepath.Join(dir, "cache.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Path:   filepath.Join(dir, "parley.log"),
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
		},
	}
}

// fillDefaults fills zero-valued fields from Default. Booleans are left
// alone because false is a meaningful setting.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = d.Server.BaseURL
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = d.Server.TimeoutSecs
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = d.Server.RateBurst
	}
	if cfg.Chat.DefaultTitle == "" {
		cfg.Chat.DefaultTitle = d.Chat.DefaultTitle
	}
	if cfg.Cache.SnapshotPath == "" {
		cfg.Cache.SnapshotPath = d.Cache.SnapshotPath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = d.Log.Path
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config at path (the default path when empty). A missing
// file yields defaults. Environment overrides are applied last, then the
// result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	// Decoding over the defaults keeps unset keys, including booleans.
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path into cfg and fills defaults.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	fillDefaults(cfg)
	return nil
}

// Save writes cfg to path as TOML.
// SECURITY: The file may contain a token, so it is written 0600.
func Save(cfg *Config, path string) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML with a short header.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# parley configuration file\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Auth.Token != "" {
		cp.Auth.Token = "********"
	}
	return &cp
}

// Token resolves the bearer token, reading TokenFile when set.
func (c *Config) Token() (string, error) {
	if c.Auth.TokenFile != "" {
		data, err := os.ReadFile(c.Auth.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return c.Auth.Token, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - PARLEY_BASE_URL: overrides server.base_url
//   - PARLEY_TOKEN: overrides auth.token
//   - PARLEY_TOKEN_FILE: overrides auth.token_file
//   - PARLEY_TIMEOUT: overrides server.timeout_secs
//   - PARLEY_LOG_LEVEL: overrides log.level
//   - PARLEY_NO_COLOR / NO_COLOR: sets ui.no_color
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PARLEY_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("PARLEY_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("PARLEY_TOKEN_FILE"); v != "" {
		c.Auth.TokenFile = v
	}
	if v := os.Getenv("PARLEY_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Server.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PARLEY_NO_COLOR"); v != "" {
		c.UI.NoColor = v == "1" || strings.EqualFold(v, "true")
	}
	if os.Getenv("NO_COLOR") != "" {
		c.UI.NoColor = true
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]/prefix", c.Server.BaseURL),
		})
	}
	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Server.TimeoutSecs),
		})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{Field: "server.rate_burst", Message: "must be at least 1"})
	}
	if c.Chat.DefaultModelID < 0 {
		errs = append(errs, ValidationError{Field: "chat.default_model_id", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be console or json", c.Log.Format),
		})
	}
	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
