// parley - A terminal client for the chat platform.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/jeranaias/parley/internal/api"
	"github.com/jeranaias/parley/internal/cache"
	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/cli"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/notify"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/ui/admin"
	"github.com/jeranaias/parley/internal/ui/app"
	"github.com/jeranaias/parley/internal/ui/chat"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// healthInterval re-checks the backend while the TUI runs.
const healthInterval = 30 * time.Second

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args := cli.Parse(argv)

	switch cmd {
	case cli.CmdHelp:
		if args.Unknown != "" {
			fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args.Unknown)
			cli.PrintUsage(os.Stderr)
			return cli.ExitUsageError
		}
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdVersion:
		r := &cli.Runner{Out: os.Stdout, Err: os.Stderr, JSON: args.JSON}
		return exit(r.Version(), args)
	}

	env, err := setup(args)
	if err != nil {
		return exit(err, args)
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case cli.CmdTUI:
		err = runTUI(ctx, env)
	case cli.CmdREPL:
		err = runREPL(ctx, env)
	default:
		r := &cli.Runner{
			API:        env.client,
			Config:     env.cfg,
			ConfigPath: env.cfgPath,
			BaseURL:    env.client.BaseURL(),
			Out:        os.Stdout,
			Err:        os.Stderr,
			JSON:       args.JSON,
		}
		err = r.Run(ctx, cmd, args)
	}
	return exit(err, args)
}

func exit(err error, args cli.Args) int {
	if err != nil && !args.JSON {
		cli.DisplayError(os.Stderr, err)
	}
	return cli.ExitCode(err)
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// environment is everything built from the config before a command runs.
type environment struct {
	cfg     *config.Config
	cfgPath string
	live    *liveConfig
	logger  zerolog.Logger
	client  *api.Client
	closers []func() error
}

func setup(args cli.Args) (*environment, error) {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, &cli.ConfigError{Path: "~/.parley/config.toml", Err: err}
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &cli.ConfigError{Path: path, Err: err}
	}
	if args.BaseURL != "" {
		cfg.Server.BaseURL = args.BaseURL
		if err := cfg.Validate(); err != nil {
			return nil, &cli.ConfigError{Path: path, Err: err}
		}
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	} else if args.Quiet {
		cfg.Log.Level = "error"
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, &cli.ConfigError{Path: path, Err: err}
	}

	live := newLiveConfig(cfg)
	client := api.NewClient(cfg.Server.BaseURL).
		WithToken(live).
		WithTimeout(cfg.Server.Timeout()).
		WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst).
		WithLogger(logger)

	return &environment{
		cfg:     cfg,
		cfgPath: path,
		live:    live,
		logger:  logger,
		client:  client,
		closers: []func() error{closer.Close},
	}, nil
}

func (e *environment) onClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn().Err(err).Msg("shutdown step failed")
		}
	}
}

// openCache builds the resource cache, warm-started from the snapshot
// store when enabled. A snapshot store that cannot be opened is skipped.
func (e *environment) openCache(ctx context.Context, sink notify.Sink) *cache.Cache {
	opts := cache.Options{Sink: sink, Logger: e.logger, Context: ctx, Scope: e.identityScope(e.live.Load())}
	if e.cfg.Cache.SnapshotEnabled {
		store, err := storage.Open(e.cfg.Cache.SnapshotPath)
		if err != nil {
			e.logger.Warn().Err(err).Str("path", e.cfg.Cache.SnapshotPath).Msg("snapshot store unavailable, starting cold")
		} else {
			opts.Snapshots = store
			e.onClose(store.Close)
		}
	}
	return cache.New(opts)
}

// newSession builds the chat session controller over c.
func (e *environment) newSession(ctx context.Context, c *cache.Cache, sink notify.Sink) *session.Controller {
	ctrl := session.New(session.Options{
		API:            e.client,
		Resources:      cache.NewResources(e.client, c),
		Sink:           sink,
		Logger:         e.logger,
		DefaultTitle:   e.cfg.Chat.DefaultTitle,
		DefaultModelID: e.cfg.Chat.DefaultModelID,
		Context:        ctx,
	})
	e.onClose(func() error {
		ctrl.Close()
		return nil
	})
	return ctrl
}

// identityScope is the snapshot scope of the client's backend used with
// cfg's token. The base URL is fixed for the life of the client.
func (e *environment) identityScope(cfg *config.Config) string {
	token, err := cfg.Token()
	if err != nil {
		e.logger.Debug().Err(err).Msg("no token for snapshot scope")
	}
	return cache.ScopeFor(e.client.BaseURL(), token)
}

// watchConfig hot-reloads the token and log level while a session runs.
// onIdentity is called, on the watcher goroutine, when a reload changes
// the token.
func (e *environment) watchConfig(onIdentity func(scope string)) {
	scope := e.identityScope(e.live.Load())
	w, err := config.Watch(e.cfgPath, config.DefaultWatchDebounce, e.logger, func(cfg *config.Config) {
		e.live.Store(cfg)
		if err := logging.ApplyLevel(cfg.Log.Level); err != nil {
			e.logger.Warn().Err(err).Msg("ignoring log level from reloaded config")
		}
		e.logger.Info().Str("path", e.cfgPath).Msg("config reloaded")

		if next := e.identityScope(cfg); next != scope {
			scope = next
			e.logger.Info().Msg("token changed, reloading session")
			onIdentity(next)
		}
	})
	if err != nil {
		e.logger.Debug().Err(err).Msg("config watch unavailable")
		return
	}
	e.onClose(w.Close)
}

// liveConfig is the current config, swapped on reload. It supplies the
// bearer token so a rotated token takes effect without a restart.
type liveConfig struct {
	cur atomic.Pointer[config.Config]
}

func newLiveConfig(cfg *config.Config) *liveConfig {
	l := &liveConfig{}
	l.cur.Store(cfg)
	return l
}

func (l *liveConfig) Store(cfg *config.Config) { l.cur.Store(cfg) }

func (l *liveConfig) Load() *config.Config { return l.cur.Load() }

// Token implements api.TokenSource.
func (l *liveConfig) Token() (string, error) {
	return l.cur.Load().Token()
}

// =============================================================================
// TUI / REPL
// =============================================================================

var errNoTerminal = errors.New("this command needs an interactive terminal; try 'parley chats' or 'parley help'")

func runTUI(ctx context.Context, env *environment) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNoTerminal
	}

	toasts := notify.NewToasts()
	sink := notify.Multi(toasts, notify.NewLogSink(env.logger))
	store := env.openCache(ctx, sink)
	ctrl := env.newSession(ctx, store, sink)
	catOpts := catalog.Options{Cache: store, Sink: sink, Logger: env.logger, Context: ctx}

	theme := styles.NewTheme(styles.Options{NoColor: env.cfg.UI.NoColor, Mode: env.cfg.UI.Theme})
	root := app.New(app.Options{
		Chat:           chat.New(ctrl, theme, chat.Options{Markdown: env.cfg.UI.Markdown}),
		Admin:          admin.New(catalog.NewModels(env.client, catOpts), catalog.NewServers(env.client, catOpts), theme),
		Theme:          theme,
		Toasts:         toasts,
		Cache:          store,
		Health:         env.client,
		HealthInterval: healthInterval,
		BaseURL:        env.client.BaseURL(),
		Logger:         env.logger,
	})

	env.logger.Info().Str("base_url", env.client.BaseURL()).Msg("starting tui")
	p := tea.NewProgram(root, tea.WithAltScreen())
	env.watchConfig(func(scope string) {
		p.Send(cache.ScopeChangedMsg{Scope: scope})
	})
	stopQuit := context.AfterFunc(ctx, p.Quit)
	defer stopQuit()
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func runREPL(ctx context.Context, env *environment) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errNoTerminal
	}

	printer := cli.NewPrinter(os.Stdout)
	sink := notify.Multi(printer, notify.NewLogSink(env.logger))
	store := env.openCache(ctx, sink)
	ctrl := env.newSession(ctx, store, sink)

	in := cli.NewLineReader(cli.DefaultHistoryFile(env.cfgPath), cli.Complete)
	env.onClose(in.Close)

	repl := cli.NewREPL(cli.REPLOptions{
		Session:  ctrl,
		Input:    in,
		Out:      os.Stdout,
		Markdown: env.cfg.UI.Markdown && !env.cfg.UI.NoColor,
		Logger:   env.logger,
	})
	env.watchConfig(repl.SwitchIdentity)
	return repl.Run(ctx)
}
