// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/danielhkuo/ballotbox/cliparse"
)

const programName = "ballotbox"

var globalFlags = struct {
	debug bool
}{}

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), "component", programName)
}

// newLogger builds the JSON logger every command writes through
func newLogger(w io.Writer, debug bool) *slog.Logger {
	logLevel := slog.LevelInfo
	addSource := false
	if debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	return slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
}

// commonRun configures logging and GOMAXPROCS for every command
func commonRun() *slog.Logger {
	logger := newLogger(os.Stdout, globalFlags.debug)
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(slogPrintf)); err != nil {
		slog.Error("failed to set GOMAXPROCS", "error", err)
		os.Exit(1)
	}
	return logger
}

func main() {
	// Config errors are reported before flags are parsed; --debug applies later
	slog.SetDefault(newLogger(os.Stdout, false))

	// .env first, then the environment, then flags at Execute time
	if err := cliparse.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := cliparse.FromEnv()
	if err != nil {
		slog.Error("error parsing environment", "error", err)
		os.Exit(1)
	}

	serve := serveCommand(&cfg)
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Anonymous ballot server with OTP voter verification",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonRun()
		},
		PreRunE: serve.PreRunE,
		RunE:    serve.RunE,
	}
	rootCmd.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "enable debug logging")
	cliparse.AddFlags(rootCmd.PersistentFlags(), &cfg)

	rootCmd.AddCommand(
		serve,
		migrateCommand(&cfg),
		seedCommand(&cfg),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
