// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
)

// HighlightJSON applies syntax highlighting to a configuration document.
// The ASCII profile, or any chroma failure, returns the text unchanged.
func HighlightJSON(code string, profile termenv.Profile) string {
	if code == "" || profile == termenv.Ascii {
		return code
	}

	lexer := lexers.Get("json")
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	name := "terminal256"
	if profile == termenv.TrueColor {
		name = "terminal16m"
	} else if profile == termenv.ANSI {
		name = "terminal16"
	}
	formatter := formatters.Get(name)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
