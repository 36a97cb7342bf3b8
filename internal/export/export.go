// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// ErrEmptyChat is returned for a transcript with no messages.
var ErrEmptyChat = errors.New("chat has no messages")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for transcript exporters.
type Exporter interface {
	// Export renders a transcript in the target format.
	Export(t Transcript) ([]byte, error)

	// FileExtension returns the file extension, including the dot.
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Transcript is a chat with its messages in append order.
type Transcript struct {
	Chat     model.Chat      `json:"chat"`
	Messages []model.Message `json:"messages"`
}

// NewTranscript builds a transcript, preferring msgs over the messages
// embedded in chat. Pending local messages are left out.
func NewTranscript(chat model.Chat, msgs []model.Message) Transcript {
	if msgs == nil {
		msgs = chat.Messages
	}
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsPending() {
			out = append(out, m)
		}
	}
	chat.Messages = nil
	return Transcript{Chat: chat, Messages: out}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where ToFile writes. Default: current directory.
	OutputDir string

	// IncludeMetadata adds the frontmatter and session section.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// Now stamps the export. Default: time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// FormatNames lists the names ForFormat accepts.
var FormatNames = []string{"md", "json"}

// ForFormat returns the exporter for a format name ("md", "markdown" or
// "json").
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want %s)", name, strings.Join(FormatNames, " or "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports t into opts.OutputDir and returns the written path. The
// file name is derived from the chat title, id and export time.
func ToFile(t Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("chat_%d_%s_%s%s",
		t.Chat.ID,
		sanitizeFilename(t.Chat.DisplayTitle()),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

const maxFilenameRunes = 50

// sanitizeFilename replaces characters that are invalid in file names on
// any common platform.
func sanitizeFilename(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxFilenameRunes {
		runes = runes[:maxFilenameRunes]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "chat"
	}
	return string(out)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
