// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main runs the in-memory chat platform backend for local
// development: point parley at it with --base-url http://127.0.0.1:8000/api/v1.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/fakeapi"
	"github.com/jeranaias/parley/internal/logging"
)

const version = "1.0.0"

type options struct {
	addr     string
	token    string
	latency  time.Duration
	seed     bool
	logLevel string
	format   string
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printHelp()
		os.Exit(2)
	}

	logger, closer, err := logging.New(config.LogConfig{Level: opts.logLevel, Format: opts.format, Path: logging.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(opts, logger); err != nil {
		logger.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(opts options, logger zerolog.Logger) error {
	srv := fakeapi.New(fakeapi.Options{Token: opts.token, Latency: opts.latency, Logger: logger})
	if opts.seed {
		srv.Store().Seed()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(opts.addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

func parseArgs(args []string) (options, error) {
	opts := options{addr: "127.0.0.1:8000", seed: true, logLevel: "info", format: "console"}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		next := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			i++
			return args[i], nil
		}

		var err error
		switch name {
		case "--addr", "-a":
			opts.addr, err = next()
		case "--token":
			opts.token, err = next()
		case "--latency":
			var v string
			if v, err = next(); err == nil {
				opts.latency, err = time.ParseDuration(v)
			}
		case "--empty":
			opts.seed = false
		case "--log-level":
			opts.logLevel, err = next()
		case "--json":
			opts.format = "json"
		case "--help", "-h":
			printHelp()
			os.Exit(0)
		case "--version", "-v":
			fmt.Printf("parley fakeapi v%s\n", version)
			os.Exit(0)
		default:
			return opts, fmt.Errorf("unknown option %q", arg)
		}
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func printHelp() {
	fmt.Println(`parley fakeapi v` + version + `

Usage: fakeapi [OPTIONS]

Serves the chat platform API from memory under ` + fakeapi.Prefix + `.

Options:
  --addr, -a ADDR     Listen address (default 127.0.0.1:8000)
  --token TOKEN       Require this bearer token on API routes
  --latency DURATION  Delay every API response (e.g. 500ms)
  --empty             Start with no demo data
  --log-level LEVEL   debug, info, warn or error (default info)
  --json              Log JSON instead of console lines
  --help, -h          Show this help
  --version, -v       Show version`)
}
