// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for CLI commands.
//
// Commands ALWAYS return errors and never print them; main decides how to
// display the error and which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected token
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed command line.
type UsageError struct {
	Message string
	Value   string
}

func (e *UsageError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s (got: %s)", e.Message, e.Value)
	}
	return e.Message
}

// ConfigError wraps a failure to load or write the config file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfg *ConfigError
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &cfg):
		return ExitConfigError
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrForbidden):
		return ExitAuthError
	case errors.Is(err, api.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, api.ErrUnavailable):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// Message renders err for a person. Backend details are shown verbatim.
func Message(err error) string {
	if d := api.Detail(err); d != "" {
		return d
	}
	return err.Error()
}

// DisplayError prints err to w with a hint when one applies.
func DisplayError(w io.Writer, err error) {
	if err == nil || errors.Is(err, ErrTestFailed) {
		return
	}
	fmt.Fprintln(w, styles.RenderError(Message(err)))

	switch ExitCode(err) {
	case ExitUsageError:
		fmt.Fprintln(w, "Run 'parley help' for usage.")
	case ExitAuthError:
		fmt.Fprintln(w, "Set PARLEY_TOKEN or auth.token_file in the config.")
	case ExitNetworkError:
		fmt.Fprintln(w, "Check server.base_url or pass --base-url.")
	}
}
