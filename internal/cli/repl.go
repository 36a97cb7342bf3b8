// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Line-mode chat over the session controller.
//
// Interactive Commands:
//   /chats, /ls          List chats, marking the selected one
//   /select N            Select the Nth chat from /chats
//   /new [title]         Create a chat and select it
//   /delete              Delete the selected chat (asks first)
//   /history             Reprint the selected chat
//   /models, /servers    List what new chats can use
//   /help, /h            Show available commands
//   /quit, /q            Exit
//   Ctrl+D               Exit

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	assistantStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)
)

// replWidth wraps rendered replies.
const replWidth = 80

// =============================================================================
// LINE INPUT
// =============================================================================

// LineReader reads one line at a time. initial prefills the line for
// editing.
type LineReader interface {
	Prompt(prompt, initial string) (string, error)
	AppendHistory(line string)
	Close() error
}

// ErrAborted is returned by a LineReader when the user pressed Ctrl+C.
var ErrAborted = liner.ErrPromptAborted

type linerReader struct {
	line        *liner.State
	historyFile string
}

// NewLineReader opens an interactive line editor with history kept in
// historyFile ("" disables persistence).
func NewLineReader(historyFile string, complete func(string) []string) LineReader {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)
	if complete != nil {
		l.SetCompleter(complete)
	}
	r := &linerReader{line: l, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = l.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// DefaultHistoryFile returns the REPL history path in the config dir.
func DefaultHistoryFile(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "repl_history")
}

func (r *linerReader) Prompt(prompt, initial string) (string, error) {
	if initial != "" {
		return r.line.PromptWithSuggestion(prompt, initial, -1)
	}
	return r.line.Prompt(prompt)
}

func (r *linerReader) AppendHistory(line string) {
	r.line.AppendHistory(line)
}

// Close saves history and restores the terminal.
// SECURITY: History can contain message text, so it is written 0600.
func (r *linerReader) Close() error {
	if r.historyFile != "" && os.MkdirAll(filepath.Dir(r.historyFile), 0700) == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// =============================================================================
// NOTIFICATION PRINTER
// =============================================================================

// Printer is a notify.Sink that prints each notification on its own line.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Success(msg string) { p.print(styles.RenderSuccess(msg)) }
func (p *Printer) Error(msg string)   { p.print(styles.RenderError(msg)) }

func (p *Printer) print(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

// =============================================================================
// REPL
// =============================================================================

// REPLOptions configures a REPL.
type REPLOptions struct {
	Session *session.Controller
	Input   LineReader
	Out     io.Writer
	// Markdown renders assistant replies with glamour.
	Markdown bool
	Logger   zerolog.Logger
}

// REPL is a line-mode chat client. Commands run synchronously: each one
// waits for its backend calls before the next prompt.
type REPL struct {
	ctrl   *session.Controller
	in     LineReader
	out    io.Writer
	md     *components.Markdown
	logger zerolog.Logger

	rescope chan string // latest pending identity change, capacity 1
}

// replCommands lists the slash commands for help and completion.
var replCommands = map[string]string{
	"/chats":   "List chats",
	"/select":  "Select the Nth chat: /select 2",
	"/new":     "Create a chat: /new [title]",
	"/delete":  "Delete the selected chat",
	"/history": "Reprint the selected chat",
	"/models":  "List models available for new chats",
	"/servers": "List servers available for new chats",
	"/help":    "Show this help",
	"/quit":    "Exit",
}

// NewREPL creates a REPL.
func NewREPL(opts REPLOptions) *REPL {
	return &REPL{
		ctrl:    opts.Session,
		in:      opts.Input,
		out:     opts.Out,
		md:      components.NewMarkdown(opts.Markdown),
		logger:  opts.Logger.With().Str("component", "repl").Logger(),
		rescope: make(chan string, 1),
	}
}

// SwitchIdentity queues a backend identity change. It is safe to call from
// any goroutine; only the latest change is kept, and it is applied between
// prompts.
func (r *REPL) SwitchIdentity(scope string) {
	for {
		select {
		case r.rescope <- scope:
			return
		default:
		}
		select {
		case <-r.rescope:
		default:
		}
	}
}

// applyIdentity reloads the session if an identity change is queued.
func (r *REPL) applyIdentity() bool {
	select {
	case scope := <-r.rescope:
		r.info("Credentials changed; reloading.")
		r.drive(r.ctrl.Update(cache.ScopeChangedMsg{Scope: scope}))
		r.printSelection()
		return true
	default:
		return false
	}
}

// Complete suggests slash commands for a partial line.
func Complete(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for name := range replCommands {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Run loads the session and reads lines until /quit or end of input.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, welcomeStyle.Render("parley")+infoStyle.Render("  type a message, or /help"))
	r.drive(r.ctrl.Init())
	r.printSelection()

	for {
		if ctx.Err() != nil {
			return nil
		}
		r.applyIdentity()
		line, err := r.in.Prompt(r.prompt(), r.ctrl.Input())
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(r.out)
			return nil
		case errors.Is(err, ErrAborted):
			r.ctrl.SetInput("")
			continue
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}
		if r.applyIdentity() {
			// Typed against the previous identity; offer it again.
			r.ctrl.SetInput(line)
			continue
		}

		if strings.TrimSpace(line) != "" {
			r.in.AppendHistory(line)
		}
		if quit := r.Handle(line); quit {
			return nil
		}
	}
}

func (r *REPL) prompt() string {
	if c, ok := r.ctrl.SelectedChat(); ok {
		return promptStyle.Render(c.DisplayTitle()+">") + " "
	}
	return promptStyle.Render("parley>") + " "
}

// Handle runs one input line and reports whether the REPL should exit.
func (r *REPL) Handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(line)
		return false
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(name) {
	case "/quit", "/q", "/exit":
		return true
	case "/help", "/h", "/?":
		r.printHelp()
	case "/chats", "/ls":
		r.drive(r.ctrl.RefreshChats())
		r.printChats()
	case "/select", "/s":
		r.selectChat(rest)
	case "/new", "/n":
		r.newChat(rest)
	case "/delete":
		r.deleteChat()
	case "/history":
		r.printHistory()
	case "/models":
		r.drive(r.ctrl.LoadCatalog())
		r.printModels()
	case "/servers":
		r.drive(r.ctrl.LoadCatalog())
		r.printServers()
	default:
		r.warn(fmt.Sprintf("Unknown command %s. Type /help.", name))
	}
	return false
}

// =============================================================================
// COMMANDS
// =============================================================================

func (r *REPL) send(text string) {
	r.ctrl.SetInput(text)
	before := len(r.ctrl.Messages())
	cmd, err := r.ctrl.Send()
	if err != nil {
		r.ctrl.SetInput("")
		switch {
		case errors.Is(err, session.ErrNoChatSelected):
			r.warn("Create or select a chat first (/new, /select N).")
		default:
			r.warn(err.Error())
		}
		return
	}
	r.drive(cmd)

	msgs := r.ctrl.Messages()
	for i := before; i < len(msgs); i++ {
		if msgs[i].Role == model.RoleAssistant {
			r.printReply(msgs[i])
		}
	}
}

func (r *REPL) selectChat(arg string) {
	chats := r.ctrl.Chats()
	n, err := ParseID("chat number", arg)
	if err != nil {
		r.warn(err.Error())
		return
	}
	if int(n) > len(chats) {
		r.warn(fmt.Sprintf("There are only %d chats. Use /chats to list them.", len(chats)))
		return
	}
	r.drive(r.ctrl.Select(chats[n-1].ID))
	r.printSelection()
}

func (r *REPL) newChat(title string) {
	cmd, err := r.ctrl.NewChat(title)
	if err != nil {
		r.warn(err.Error())
		return
	}
	r.drive(cmd)
	r.printSelection()
}

func (r *REPL) deleteChat() {
	chat, ok := r.ctrl.SelectedChat()
	if !ok {
		r.warn("No chat selected.")
		return
	}
	answer, err := r.in.Prompt(fmt.Sprintf("Delete chat %q? [y/N] ", chat.DisplayTitle()), "")
	if err != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
		r.info("Kept.")
		return
	}
	cmd, err := r.ctrl.DeleteChat(chat.ID)
	if err != nil {
		r.warn(err.Error())
		return
	}
	r.drive(cmd)
	r.printSelection()
}

// drive runs cmd to completion, feeding every result back into the
// controller.
func (r *REPL) drive(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			r.drive(c)
		}
	default:
		r.drive(r.ctrl.Update(msg))
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *REPL) printHelp() {
	names := make([]string, 0, len(replCommands))
	for name := range replCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(r.out, "  %s %s\n", promptStyle.Render(fmt.Sprintf("%-10s", name)), replCommands[name])
	}
	r.info("Anything else is sent to the selected chat.")
}

func (r *REPL) printChats() {
	chats := r.ctrl.Chats()
	if len(chats) == 0 {
		r.info("No chats yet. Create one with /new.")
		return
	}
	for i, c := range chats {
		marker := "  "
		if c.ID == r.ctrl.Selected() {
			marker = "> "
		}
		fmt.Fprintf(r.out, "%s%2d. %s\n", marker, i+1, c.DisplayTitle())
	}
}

func (r *REPL) printSelection() {
	chat, ok := r.ctrl.SelectedChat()
	if !ok {
		r.info("No chat selected. Create one with /new.")
		return
	}
	r.info(fmt.Sprintf("Chatting in %q.", chat.DisplayTitle()))
	r.printHistory()
}

func (r *REPL) printHistory() {
	if r.ctrl.State() == session.NoChats {
		r.info("No chat selected.")
		return
	}
	if err := r.ctrl.LoadErr(); err != nil {
		r.warn("Could not load messages: " + Message(err))
		return
	}
	for _, m := range r.ctrl.Messages() {
		if m.Role == model.RoleAssistant {
			r.printReply(m)
			continue
		}
		fmt.Fprintf(r.out, "%s %s\n", promptStyle.Render(m.Role.DisplayName()+":"), m.Content)
	}
}

func (r *REPL) printReply(m model.Message) {
	fmt.Fprintln(r.out, assistantStyle.Render(m.Role.DisplayName()+":"))
	fmt.Fprintln(r.out, strings.TrimRight(r.md.Render(m.Content, replWidth), "\n"))
}

func (r *REPL) printModels() {
	models := r.ctrl.SelectableModels()
	if len(models) == 0 {
		r.info("No active models.")
		return
	}
	for _, m := range models {
		fmt.Fprintf(r.out, "  %d  %s (%s/%s)\n", m.ID, m.Name, m.Provider, m.ModelName)
	}
}

func (r *REPL) printServers() {
	servers := r.ctrl.SelectableServers()
	if len(servers) == 0 {
		r.info("No active servers.")
		return
	}
	for _, s := range servers {
		fmt.Fprintf(r.out, "  %d  %s [%s] %s\n", s.ID, s.Name, s.ServerType, s.ServerURL)
	}
}

func (r *REPL) info(msg string) {
	fmt.Fprintln(r.out, infoStyle.Render(msg))
}

func (r *REPL) warn(msg string) {
	fmt.Fprintln(r.out, styles.RenderError(msg))
}
