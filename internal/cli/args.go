// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser parses a command's own arguments. It handles:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (no value needed)
//   - Positional arguments
//
// Names listed in bools never consume the following argument, so
// "--all 3" is a boolean plus a positional.
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
}

// NewArgParser parses raw. bools names the flags that take no value.
//
//	p := NewArgParser([]string{"show", "--limit", "5", "--all"}, "all")
//	p.Positional(0)    // "show"
//	p.Flag("limit")    // "5"
//	p.BoolFlag("all")  // true
func NewArgParser(raw []string, bools ...string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
	}
	isBool := make(map[string]bool, len(bools))
	for _, b := range bools {
		isBool[b] = true
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(name, "="); ok {
			if isBool[k] {
				p.boolFlags[k] = v == "true" || v == "1"
			} else {
				p.flags[k] = v
			}
			continue
		}
		if !isBool[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.flags[name] = raw[i+1]
			i++
			continue
		}
		p.boolFlags[name] = true
	}
	return p
}

// Flag returns a string flag, or "".
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// FlagOrDefault returns the flag value or def when unset.
func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return def
}

// BoolFlag reports whether a boolean flag was given.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// HasFlag reports whether the flag was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, s := p.flags[name]
	_, b := p.boolFlags[name]
	return s || b
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments from index on.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// ParseID parses a positive resource id.
func ParseID(field, s string) (int64, error) {
	if s == "" {
		return 0, &UsageError{Message: field + " is required"}
	}
	id, ok := util.ParseID(s)
	if !ok {
		return 0, &UsageError{Message: field + " must be a positive integer", Value: s}
	}
	return id, nil
}
