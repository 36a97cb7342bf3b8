// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// ValidationError is a local validation failure. No remote call is issued
// when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil when empty so callers can `return errs.Err()`.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (errs *ValidationErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		*errs = append(*errs, &ValidationError{Field: field, Message: "is required"})
	}
}
