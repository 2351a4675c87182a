/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/heimdall_alarm/internal/config"
	"github.com/friendsincode/heimdall_alarm/internal/logbuffer"
	"github.com/friendsincode/heimdall_alarm/internal/logging"
	"github.com/friendsincode/heimdall_alarm/internal/server"
	"github.com/friendsincode/heimdall_alarm/internal/telemetry"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "heimdallalarm",
		Short:   "Heimdall Alarm - self-hosted wake-up engine",
		Version: version,
	}
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alarm engine and its API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logBuf := logbuffer.New(1000)
			logger := logging.SetupWithWriter(cfg.Environment, logBuf)
			logger.Info().Str("version", version).Str("environment", cfg.Environment).Msg("Starting Heimdall Alarm")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
				Enabled:     cfg.TracingEnabled,
				Endpoint:    cfg.OTLPEndpoint,
				ServiceName: "heimdall-alarm",
				Environment: cfg.Environment,
				SampleRate:  cfg.TracingSampleRate,
			})
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}

			srv, err := server.New(cfg, logBuf, logger)
			if err != nil {
				return fmt.Errorf("init server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				logger.Info().Msg("Shutdown signal received")
			case err := <-errCh:
				if err != nil {
					logger.Error().Err(err).Msg("Server failed")
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Shutdown incomplete")
			}
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Tracer shutdown failed")
			}
			return nil
		},
	}
}
