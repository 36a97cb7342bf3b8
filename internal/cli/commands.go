// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// ErrTestFailed is returned by test-server after the failure has been
// printed, so callers only need the exit code.
var ErrTestFailed = errors.New("connection test failed")

// Backend is the API surface the one-shot commands use. *api.Client
// satisfies it.
type Backend interface {
	ListChats(ctx context.Context) ([]model.Chat, error)
	GetChat(ctx context.Context, id int64) (*model.Chat, error)
	ListMessages(ctx context.Context, chatID int64) ([]model.Message, error)
	ListLLMModels(ctx context.Context) ([]model.LLMModel, error)
	ListMCPServers(ctx context.Context) ([]model.MCPServer, error)
	TestMCPServer(ctx context.Context, id int64) (*model.TestResult, error)
	Health(ctx context.Context) (*api.HealthStatus, error)
}

// Runner executes the one-shot commands.
type Runner struct {
	API        Backend
	Config     *config.Config
	ConfigPath string
	BaseURL    string

	Out  io.Writer
	Err  io.Writer
	JSON bool
	Now  func() time.Time
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Cyan)

// Run dispatches cmd. In JSON mode a failure is also printed as an error
// envelope.
func (r *Runner) Run(ctx context.Context, cmd Command, args Args) error {
	var err error
	switch cmd {
	case CmdChats:
		err = r.Chats(ctx)
	case CmdModels:
		err = r.Models(ctx, NewArgParser(args.Raw, "all").BoolFlag("all"))
	case CmdServers:
		err = r.Servers(ctx, NewArgParser(args.Raw, "all").BoolFlag("all"))
	case CmdTestServer:
		err = r.TestServer(ctx, args.Subcommand)
	case CmdHealth:
		err = r.Health(ctx)
	case CmdExport:
		err = r.Export(ctx, args)
	case CmdConfig:
		err = r.ConfigCmd(args)
	case CmdVersion:
		err = r.Version()
	default:
		err = &UsageError{Message: "not a one-shot command", Value: cmd.String()}
	}

	if err != nil && r.JSON && !errors.Is(err, ErrTestFailed) {
		if perr := NewJSONErrorResponse(cmd.String(), err, r.now()).Print(r.Out); perr != nil {
			return errors.Join(err, perr)
		}
	}
	return err
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// emit prints data as a JSON envelope, or calls text.
func (r *Runner) emit(command string, data any, text func(w io.Writer)) error {
	if r.JSON {
		return NewJSONResponse(command, data, r.now()).Print(r.Out)
	}
	text(r.Out)
	return nil
}

// =============================================================================
// LIST COMMANDS
// =============================================================================

// Chats lists the user's chats, newest first.
func (r *Runner) Chats(ctx context.Context) error {
	chats, err := r.API.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	return r.emit("chats", chats, func(w io.Writer) {
		if len(chats) == 0 {
			fmt.Fprintln(w, "No chats yet. Start one with 'parley repl' or the TUI.")
			return
		}
		t := table{widths: []int{6, 32, 8, 17}}
		t.header(w, "ID", "Title", "Model", "Created")
		for _, c := range chats {
			t.row(w, fmt.Sprint(c.ID), c.DisplayTitle(), optionalID(c.LLMModelID), formatTime(c.CreatedAt))
		}
	})
}

// Models lists LLM models. Inactive models are hidden unless all is set.
func (r *Runner) Models(ctx context.Context, all bool) error {
	models, err := r.API.ListLLMModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if !all {
		models = model.ActiveOnly(models)
	}
	if models == nil {
		models = []model.LLMModel{}
	}
	return r.emit("models", models, func(w io.Writer) {
		if len(models) == 0 {
			fmt.Fprintln(w, "No models configured.")
			return
		}
		t := table{widths: []int{6, 20, 12, 24, 8}}
		t.header(w, "ID", "Name", "Provider", "Model", "Active")
		for _, m := range models {
			t.row(w, fmt.Sprint(m.ID), m.Name, m.Provider, m.ModelName, yesNo(m.IsActive))
		}
	})
}

// Servers lists MCP servers. Inactive servers are hidden unless all is set.
func (r *Runner) Servers(ctx context.Context, all bool) error {
	servers, err := r.API.ListMCPServers(ctx)
	if err != nil {
		return fmt.Errorf("list servers: %w", err)
	}
	if !all {
		servers = model.ActiveOnly(servers)
	}
	if servers == nil {
		servers = []model.MCPServer{}
	}
	return r.emit("servers", servers, func(w io.Writer) {
		if len(servers) == 0 {
			fmt.Fprintln(w, "No servers configured.")
			return
		}
		t := table{widths: []int{6, 20, 10, 32, 8}}
		t.header(w, "ID", "Name", "Type", "URL", "Active")
		for _, s := range servers {
			t.row(w, fmt.Sprint(s.ID), s.Name, s.ServerType, s.ServerURL, yesNo(s.IsActive))
		}
	})
}

// =============================================================================
// TEST-SERVER / HEALTH
// =============================================================================

// TestServer runs a connection test for the server with the given id.
func (r *Runner) TestServer(ctx context.Context, rawID string) error {
	id, err := ParseID("server id", rawID)
	if err != nil {
		return err
	}
	res, err := r.API.TestMCPServer(ctx, id)
	if err != nil {
		return fmt.Errorf("test server %d: %w", id, err)
	}

	if err := r.emit("test-server", res, func(w io.Writer) {
		if res.Success {
			fmt.Fprintln(w, styles.RenderSuccess("Server connection successful!"))
		} else {
			fmt.Fprintln(w, styles.RenderError("Server connection failed: "+res.Error))
		}
		if res.ServerName != "" {
			fmt.Fprintf(w, "  %s (%s) %s\n", res.ServerName, res.ServerType, res.ServerURL)
		}
	}); err != nil {
		return err
	}
	if !res.Success {
		return ErrTestFailed
	}
	return nil
}

// HealthReport is the health command's payload.
type HealthReport struct {
	BaseURL   string `json:"base_url"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// Health checks the backend.
func (r *Runner) Health(ctx context.Context) error {
	start := r.now()
	st, err := r.API.Health(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	report := HealthReport{
		BaseURL:   r.BaseURL,
		Status:    st.Status,
		LatencyMS: r.now().Sub(start).Milliseconds(),
	}
	return r.emit("health", report, func(w io.Writer) {
		fmt.Fprintln(w, styles.RenderSuccess(fmt.Sprintf("backend %s (%dms)", report.Status, report.LatencyMS)))
		if report.BaseURL != "" {
			fmt.Fprintf(w, "  %s\n", report.BaseURL)
		}
	})
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportReport is the export command's payload when writing to a file.
type ExportReport struct {
	ChatID   int64  `json:"chat_id"`
	Format   string `json:"format"`
	Path     string `json:"path"`
	Messages int    `json:"messages"`
}

// Export handles "export <chat-id> [--format md|json] [--output DIR]".
// Without --output the document goes to stdout as is, even in JSON mode.
func (r *Runner) Export(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "no-metadata")
	id, err := ParseID("chat id", p.Positional(0))
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	opts.OutputDir = p.Flag("output")
	opts.IncludeMetadata = !p.BoolFlag("no-metadata")
	opts.Now = r.now
	format := p.FlagOrDefault("format", "md")
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return &UsageError{Message: err.Error(), Value: format}
	}

	chat, err := r.API.GetChat(ctx, id)
	if err != nil {
		return fmt.Errorf("get chat %d: %w", id, err)
	}
	msgs, err := r.API.ListMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("list messages for chat %d: %w", id, err)
	}
	transcript := export.NewTranscript(*chat, msgs)

	if opts.OutputDir == "" {
		data, err := exp.Export(transcript)
		if err != nil {
			return fmt.Errorf("export chat %d: %w", id, err)
		}
		_, err = r.Out.Write(data)
		return err
	}

	path, err := export.ToFile(transcript, exp, opts)
	if err != nil {
		return fmt.Errorf("export chat %d: %w", id, err)
	}
	report := ExportReport{ChatID: id, Format: strings.TrimPrefix(exp.FileExtension(), "."), Path: path, Messages: len(transcript.Messages)}
	return r.emit("export", report, func(w io.Writer) {
		fmt.Fprintln(w, styles.RenderSuccess(fmt.Sprintf("Exported %d messages to %s", report.Messages, path)))
	})
}

// =============================================================================
// CONFIG / VERSION
// =============================================================================

// ConfigCmd handles "config show|path|init [--force]".
func (r *Runner) ConfigCmd(args Args) error {
	p := NewArgParser(args.Raw, "force")
	switch sub := strings.ToLower(p.Positional(0)); sub {
	case "", "show":
		cfg := r.Config
		if cfg == nil {
			cfg = config.Default()
		}
		red := cfg.Redacted()
		if r.JSON {
			return r.emit("config", red, nil)
		}
		data, err := red.Encode()
		if err != nil {
			return err
		}
		_, err = r.Out.Write(data)
		return err

	case "path":
		return r.emit("config", map[string]string{"path": r.ConfigPath}, func(w io.Writer) {
			fmt.Fprintln(w, r.ConfigPath)
		})

	case "init":
		if _, err := os.Stat(r.ConfigPath); err == nil && !p.BoolFlag("force") {
			return &UsageError{Message: "config file already exists, pass --force to overwrite", Value: r.ConfigPath}
		}
		if err := config.Save(config.Default(), r.ConfigPath); err != nil {
			return &ConfigError{Path: r.ConfigPath, Err: err}
		}
		return r.emit("config", map[string]string{"path": r.ConfigPath}, func(w io.Writer) {
			fmt.Fprintln(w, styles.RenderSuccess("Wrote "+r.ConfigPath))
		})

	default:
		return &UsageError{Message: "unknown config subcommand", Value: sub}
	}
}

// Version prints build information.
func (r *Runner) Version() error {
	v := CurrentVersion()
	return r.emit("version", v, func(w io.Writer) {
		fmt.Fprintf(w, "parley %s\n", v.Version)
		fmt.Fprintf(w, "  commit: %s\n  built:  %s\n  go:     %s (%s)\n", v.GitCommit, v.BuildDate, v.GoVersion, v.Platform)
	})
}

// =============================================================================
// TABLE HELPERS
// =============================================================================

type table struct {
	widths []int
}

func (t table) line(cells []string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		if i == len(cells)-1 {
			parts[i] = util.TruncateWidth(c, t.widths[i])
			continue
		}
		parts[i] = util.PadWidth(c, t.widths[i])
	}
	return strings.Join(parts, "  ")
}

func (t table) header(w io.Writer, cells ...string) {
	fmt.Fprintln(w, headerStyle.Render(t.line(cells)))
}

func (t table) row(w io.Writer, cells ...string) {
	fmt.Fprintln(w, t.line(cells))
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}

func formatTime(ts model.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
