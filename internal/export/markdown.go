// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders t as Markdown.
func (e *MarkdownExporter) Export(t Transcript) ([]byte, error) {
	if len(t.Messages) == 0 {
		return nil, ErrEmptyChat
	}

	var sb strings.Builder
	title := t.Chat.DisplayTitle()
	now := e.options.now()

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
		fmt.Fprintf(&sb, "chat_id: %d\n", t.Chat.ID)
		if t.Chat.LLMModelID != nil {
			fmt.Fprintf(&sb, "llm_model_id: %d\n", *t.Chat.LLMModelID)
		}
		if t.Chat.MCPServerID != nil {
			fmt.Fprintf(&sb, "mcp_server_id: %d\n", *t.Chat.MCPServerID)
		}
		if !t.Chat.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "date: %s\n", t.Chat.CreatedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", now.Format(time.RFC3339))
		sb.WriteString("generator: parley\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		if m := modelsUsed(t.Messages); len(m) > 0 {
			fmt.Fprintf(&sb, "- **Model**: %s\n", strings.Join(m, ", "))
		}
		if !t.Chat.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(t.Chat.CreatedAt.Time))
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(t.Messages))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")

	for i, msg := range t.Messages {
		label := roleLabel(msg.Role)
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.CreatedAt.Time))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if msg.Role == model.RoleAssistant && e.options.IncludeMetadata {
			if stats := messageStats(msg); stats != "" {
				sb.WriteString(stats)
				sb.WriteString("\n\n")
			}
		}

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from parley on %s*\n", now.Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(role model.Role) string {
	switch role {
	case "":
		return "Unknown"
	case model.RoleUser:
		return "[User]"
	case model.RoleAssistant:
		return "[Assistant]"
	default:
		r := []rune(string(role))
		return "[" + strings.ToUpper(string(r[0])) + string(r[1:]) + "]"
	}
}

// modelsUsed returns the distinct assistant models, sorted.
func modelsUsed(msgs []model.Message) []string {
	seen := map[string]bool{}
	for _, m := range msgs {
		if name, ok := m.Metadata["model"].(string); ok && name != "" {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// messageStats summarizes the metadata the backend attaches to replies.
func messageStats(msg model.Message) string {
	var parts []string
	if name, ok := msg.Metadata["model"].(string); ok && name != "" {
		if provider, ok := msg.Metadata["provider"].(string); ok && provider != "" {
			name = provider + "/" + name
		}
		parts = append(parts, "Model: "+name)
	}
	if usage, ok := msg.Metadata["usage"].(map[string]any); ok {
		if total, ok := usage["total_tokens"]; ok {
			parts = append(parts, fmt.Sprintf("Tokens: %v", total))
		}
	}
	if trace, ok := msg.Metadata["trace_id"].(string); ok && trace != "" {
		parts = append(parts, "Trace: `"+trace+"`")
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("<sub>%s</sub>", strings.Join(parts, " | "))
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	)
	return r.Replace(s)
}

// escapeYAML quotes a scalar when it contains YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		s = strings.ReplaceAll(s, "\n", `\n`)
		s = strings.ReplaceAll(s, "\r", `\r`)
		return `"` + s + `"`
	}
	return s
}
