/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the alarm engine together and runs its HTTP
// surfaces.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_alarm/internal/alarm"
	"github.com/friendsincode/heimdall_alarm/internal/api"
	"github.com/friendsincode/heimdall_alarm/internal/audio"
	"github.com/friendsincode/heimdall_alarm/internal/audio/gst"
	"github.com/friendsincode/heimdall_alarm/internal/auth"
	"github.com/friendsincode/heimdall_alarm/internal/checker"
	"github.com/friendsincode/heimdall_alarm/internal/config"
	"github.com/friendsincode/heimdall_alarm/internal/db"
	"github.com/friendsincode/heimdall_alarm/internal/dedup"
	"github.com/friendsincode/heimdall_alarm/internal/eventbus"
	"github.com/friendsincode/heimdall_alarm/internal/events"
	"github.com/friendsincode/heimdall_alarm/internal/keepalive"
	"github.com/friendsincode/heimdall_alarm/internal/logbuffer"
	"github.com/friendsincode/heimdall_alarm/internal/music"
	"github.com/friendsincode/heimdall_alarm/internal/notify"
	"github.com/friendsincode/heimdall_alarm/internal/store"
	"github.com/friendsincode/heimdall_alarm/internal/telemetry"
)

const tokenTTL = 24 * time.Hour

// Server owns every component and their lifecycles.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	database *gorm.DB
	bus      *events.Bus
	registry *dedup.Registry
	notifier *notify.Scheduler
	manager  *alarm.Manager
	checker  *checker.Service
	relay    *eventbus.NATSRelay

	httpServer    *http.Server
	metricsServer *http.Server
	checkerDone   chan struct{}
}

// New builds the full dependency graph. Nothing runs until Start.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	bus := events.NewBus()
	alarms := store.NewAlarmStore(database, logger)
	kv := store.NewKV(database)

	registry := dedup.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DedupTTL, logger)

	session := gst.NewSession(cfg.GStreamerBin, logger)
	tokens := music.NewKVTokenSource(kv)
	musicClient := music.NewHTTPClient(cfg.MusicAPIBaseURL, tokens, logger)

	factory := audio.NewFactory(session, musicClient, audio.FactoryConfig{
		StreamMonitorInterval: cfg.StreamMonitorInterval,
		PlaylistRetryAttempts: cfg.PlaylistRetryAttempts,
		PlaylistRetryDelay:    cfg.PlaylistRetryBaseDelay,
	}, logger)

	notifier := notify.NewScheduler(bus, logger)
	manager := alarm.NewManager(alarms, factory, registry, notifier, bus, logger)

	var keepAlive keepalive.Capability = keepalive.Noop{}
	if cfg.KeepAliveEnabled {
		keepAlive = keepalive.NewSilentAudio(cfg.GStreamerBin, logger)
	}
	checkerSvc := checker.New(alarms, manager, notifier, keepAlive, registry, bus, cfg.CheckerInterval, logger)

	var relay *eventbus.NATSRelay
	if cfg.NATSEnabled {
		relay, err = eventbus.NewNATSRelay(cfg.NATSURL, bus, logger)
		if err != nil {
			return nil, fmt.Errorf("connect event relay: %w", err)
		}
	}

	authService := auth.NewService(cfg.JWTSigningKey, cfg.APIPasswordHash, tokenTTL)

	apiHandler := api.New(api.Config{
		Alarms:               alarms,
		KV:                   kv,
		Manager:              manager,
		Notifier:             notifier,
		MusicClient:          musicClient,
		AuthService:          authService,
		Bus:                  bus,
		LogBuffer:            logBuf,
		DefaultSnoozeMinutes: cfg.DefaultSnoozeMinutes,
	}, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(telemetry.MetricsMiddleware)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	apiHandler.Routes(router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())

	return &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
		database: database,
		bus:      bus,
		registry: registry,
		notifier: notifier,
		manager:  manager,
		checker:  checkerSvc,
		relay:    relay,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		metricsServer: &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		checkerDone: make(chan struct{}),
	}, nil
}

// Start launches the background workers and both HTTP listeners. Blocks
// serving the API until Shutdown or a listener error.
func (s *Server) Start(ctx context.Context) error {
	if s.relay != nil {
		s.relay.Start()
	}

	go func() {
		defer close(s.checkerDone)
		s.checker.Run(ctx)
	}()

	go func() {
		s.logger.Info().Str("addr", s.metricsServer.Addr).Msg("Metrics listener started")
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API listener started")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api listener: %w", err)
	}
	return nil
}

// Shutdown stops everything in dependency order: listeners first, then
// the trigger engine, then playback and storage.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("API shutdown failed")
	}
	if err := s.metricsServer.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Metrics shutdown failed")
	}

	s.checker.Stop()
	select {
	case <-s.checkerDone:
	case <-ctx.Done():
	}

	s.manager.Close(ctx)
	s.notifier.Close()

	if s.relay != nil {
		s.relay.Close()
	}
	if err := s.registry.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Dedup registry close failed")
	}
	if err := db.Close(s.database); err != nil {
		s.logger.Warn().Err(err).Msg("Database close failed")
	}

	s.logger.Info().Msg("Shutdown complete")
	return nil
}
