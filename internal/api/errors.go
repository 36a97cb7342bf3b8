// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common backend failures. *Error matches these with
// errors.Is by status code.
var (
	// ErrUnauthorized indicates a missing or rejected bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks the required role (admin routes).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the addressed entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates the backend rejected the request body.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrServer indicates a backend-side failure.
	ErrServer = errors.New("server error")

	// ErrUnavailable indicates the request never produced a response.
	ErrUnavailable = errors.New("backend unavailable")
)

// Error is a non-2xx response from the backend.
type Error struct {
	Status int
	Detail string
	Method string
	Path   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}

// Is maps the status code onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrInvalidRequest:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case ErrServer:
		return e.Status >= 500
	}
	return false
}

// Detail returns the server-supplied detail carried by err, or "".
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// DetailOr returns the server-supplied detail, or fallback when there is
// none.
func DetailOr(err error, fallback string) string {
	if d := Detail(err); d != "" {
		return d
	}
	return fallback
}

// validationItem is one entry of a request validation failure list.
type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseError builds an *Error from a response body. The backend reports
// failures as {"detail": "..."} or, for schema validation, as a list of
// {"loc": [...], "msg": "..."} entries.
func parseError(method, path string, status int, body []byte) *Error {
	e := &Error{Status: status, Method: method, Path: path}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return e
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		e.Detail = s
		return e
	}

	var items []validationItem
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if field := fieldFromLoc(it.Loc); field != "" {
				parts = append(parts, field+": "+it.Msg)
			} else {
				parts = append(parts, it.Msg)
			}
		}
		e.Detail = strings.Join(parts, "; ")
	}
	return e
}

// fieldFromLoc returns the last string element of a validation location,
// skipping the leading "body"/"query" segment.
func fieldFromLoc(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" && s != "query" && s != "path" {
			return s
		}
	}
	return ""
}
