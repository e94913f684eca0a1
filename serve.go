// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/ballotbox/audit"
	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/cliparse"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/metrics"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/notify"
	"github.com/danielhkuo/ballotbox/router"
	"github.com/danielhkuo/ballotbox/verify"
	"github.com/danielhkuo/ballotbox/window"
)

func serveCommand(cfg *cliparse.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg)
		},
	}
}

func runServe(ctx context.Context, cfg cliparse.Config) error {
	logger := slog.Default()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.CreateSchema(ctx, conn); err != nil {
		return err
	}
	slog.Info("database schema ready", "database_type", cfg.DatabaseType)

	c := clock.System()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)
	trail := audit.NewTrail(conn, c, logger)

	dispatcher := notify.NewDispatcher(notify.Config{
		Workers:   cfg.DeliveryWorkers,
		QueueSize: cfg.DeliveryQueueSize,
		Timeout:   cfg.DeliveryTimeout,
	}, logger, deliveryChannels(cfg, logger)...)
	dispatcher.OnResult(notify.AuditResults(trail, m))
	dispatcher.Start()
	// Runs before conn.Close so queued results can still be audited
	defer dispatcher.Close()

	verifier := verify.NewService(conn, c, dispatcher, ballot.NewIssuer(c, cfg.BallotTTL), trail, m, verify.Options{
		TTL:         cfg.OTPTTL,
		Cooldown:    cfg.OTPCooldown,
		MaxAttempts: cfg.OTPMaxAttempts,
		BcryptCost:  cfg.BcryptCost,
		IPSalt:      cfg.IPHashSalt,
	})
	ballots := ballot.NewService(conn, window.NewResolver(c), trail, m)

	mux := router.NewRouter(router.Deps{
		Verifier: verifier,
		Ballots:  ballots,
		Limiter:  middleware.NewIPLimiter(cfg.VerifyRateLimit, cfg.VerifyRateBurst),
		Metrics:  m,
		Gatherer: registry,
	})

	server := &http.Server{
		Handler:           middleware.CORS(middleware.WithClientIP(cfg.TrustProxyHeaders, mux)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "port", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		server.Close()
	}
	slog.Info("server closed")
	return nil
}

// deliveryChannels builds the configured channels in preference order
func deliveryChannels(cfg cliparse.Config, logger *slog.Logger) []notify.Channel {
	var channels []notify.Channel
	if cfg.SMTPHost != "" {
		channels = append(channels, notify.NewEmailChannel(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}))
	}
	if cfg.SMSGatewayURL != "" {
		channels = append(channels, notify.NewSMSChannel(cfg.SMSGatewayURL, cfg.SMSGatewayToken, &http.Client{Timeout: cfg.DeliveryTimeout}))
	}
	if cfg.DevDelivery {
		slog.Warn("dev delivery enabled: OTP codes will be written to the log")
		channels = append(channels, notify.NewConsoleChannel(logger))
	}
	return channels
}
