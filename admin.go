// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/ballotbox/cliparse"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/seed"
)

func migrateCommand(cfg *cliparse.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.ValidateDatabase()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.CreateSchema(ctx, conn); err != nil {
				return err
			}
			slog.Info("database schema ready", "database_type", cfg.DatabaseType)
			return nil
		},
	}
}

func seedCommand(cfg *cliparse.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load positions, candidates and voters from a YAML file",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.ValidateDatabase()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			election, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}

			conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.CreateSchema(ctx, conn); err != nil {
				return err
			}

			sum, err := seed.Apply(ctx, conn, clock.System(), election)
			if err != nil {
				return err
			}
			slog.Info("election seeded",
				"file", args[0],
				"positions", sum.Positions,
				"candidates", sum.Candidates,
				"voters", sum.Voters,
			)
			return nil
		},
	}
}
