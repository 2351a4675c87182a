/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package checker runs the periodic trigger path and reacts to
// notification firings, feeding both into the alarm manager.
package checker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/alarm"
	"github.com/friendsincode/heimdall_alarm/internal/dedup"
	"github.com/friendsincode/heimdall_alarm/internal/events"
	"github.com/friendsincode/heimdall_alarm/internal/keepalive"
	"github.com/friendsincode/heimdall_alarm/internal/notify"
	"github.com/friendsincode/heimdall_alarm/internal/store"
	"github.com/friendsincode/heimdall_alarm/internal/telemetry"
)

// Service is the safety net behind the scheduled notifications: a
// periodic sweep over all enabled alarms that fires anything due. It
// also owns the keep-alive activity and keeps the notification
// schedule in sync when alarms change.
type Service struct {
	alarms    *store.AlarmStore
	manager   *alarm.Manager
	notifier  *notify.Scheduler
	keepAlive keepalive.Capability
	registry  *dedup.Registry
	bus       *events.Bus
	interval  time.Duration
	logger    zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	warnOnce sync.Once
}

func New(alarms *store.AlarmStore, manager *alarm.Manager, notifier *notify.Scheduler, keepAlive keepalive.Capability, registry *dedup.Registry, bus *events.Bus, interval time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		alarms:    alarms,
		manager:   manager,
		notifier:  notifier,
		keepAlive: keepAlive,
		registry:  registry,
		bus:       bus,
		interval:  interval,
		logger:    logger.With().Str("component", "checker").Logger(),
		stopCh:    make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called. The first sweep
// happens immediately so alarms due at startup are not lost to the
// tick interval.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Checker started")

	defer func() {
		if err := s.keepAlive.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("Keep-alive activity failed to stop")
		}
	}()

	fired := s.bus.Subscribe(events.EventNotificationFired)
	defer s.bus.Unsubscribe(events.EventNotificationFired, fired)
	triggered := s.bus.Subscribe(events.EventAlarmTriggered)
	defer s.bus.Unsubscribe(events.EventAlarmTriggered, triggered)
	changed := s.bus.Subscribe(events.EventAlarmUpdated)
	defer s.bus.Unsubscribe(events.EventAlarmUpdated, changed)
	stopped := s.bus.Subscribe(events.EventAlarmStopped)
	defer s.bus.Unsubscribe(events.EventAlarmStopped, stopped)
	snoozed := s.bus.Subscribe(events.EventAlarmSnoozed)
	defer s.bus.Unsubscribe(events.EventAlarmSnoozed, snoozed)

	s.syncNotifications(ctx)
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Checker stopping, context cancelled")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("Checker stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		case payload := <-fired:
			s.onNotificationFired(ctx, payload)
		case <-triggered:
			// Alarm audio took over; the silent activity steps aside
			// before the next sweep.
			s.haltKeepAlive()
		case <-changed:
			s.syncNotifications(ctx)
		case <-stopped:
			s.ensureKeepAlive(ctx)
			s.syncNotifications(ctx)
		case <-snoozed:
			s.ensureKeepAlive(ctx)
			s.syncNotifications(ctx)
		}
	}
}

// Stop terminates Run.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// tick is one checker sweep. While an alarm rings nothing is evaluated
// and the keep-alive activity stands down; the ringing alarm owns the
// audio path and its playback keeps the process schedulable on its own.
func (s *Service) tick(ctx context.Context) {
	telemetry.CheckerTicksTotal.Inc()

	if s.manager.Ringing() {
		s.haltKeepAlive()
		return
	}
	s.ensureKeepAlive(ctx)

	alarms, err := s.alarms.ListEnabled(ctx)
	if err != nil {
		telemetry.CheckerErrorsTotal.WithLabelValues("list").Inc()
		s.logger.Error().Err(err).Msg("Failed to list alarms")
		return
	}

	now := time.Now()
	due := alarm.FirstDue(alarms, now)
	if due == nil {
		return
	}
	if s.registry.Seen(ctx, due.ID, now) {
		// This minute already fired (and was stopped); keep the
		// manager out of it.
		return
	}

	if err := s.manager.Trigger(ctx, *due, "checker", now); err != nil {
		telemetry.CheckerErrorsTotal.WithLabelValues("trigger").Inc()
		s.logger.Error().Err(err).Str("alarm_id", due.ID).Msg("Trigger failed")
	}
}

// ensureKeepAlive restarts a dead keep-alive activity between alarms.
func (s *Service) ensureKeepAlive(ctx context.Context) {
	if s.keepAlive.Active() {
		return
	}
	if err := s.keepAlive.Start(ctx); err != nil {
		s.warnOnce.Do(func() {
			s.logger.Warn().Err(err).Msg("Keep-alive activity unavailable")
		})
		return
	}
	s.bus.Publish(events.EventKeepAlive, events.Payload{"active": true})
}

// haltKeepAlive tears the keep-alive activity down while alarm audio
// plays.
func (s *Service) haltKeepAlive() {
	if !s.keepAlive.Active() {
		return
	}
	if err := s.keepAlive.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Keep-alive activity failed to stop")
		return
	}
	s.bus.Publish(events.EventKeepAlive, events.Payload{"active": false})
}

// onNotificationFired handles the notification trigger path. The alarm
// is re-read and re-evaluated before firing; a notification scheduled
// before an edit or disable must not ring the old configuration.
func (s *Service) onNotificationFired(ctx context.Context, payload events.Payload) {
	alarmID, _ := payload["alarm_id"].(string)
	if alarmID == "" {
		return
	}

	a, err := s.alarms.Get(ctx, alarmID)
	if err != nil {
		s.logger.Warn().Err(err).Str("alarm_id", alarmID).Msg("Notification fired for unknown alarm")
		return
	}

	now := time.Now()
	if !alarm.IsDue(*a, now) {
		s.logger.Debug().Str("alarm_id", alarmID).Msg("Notification fired but alarm is not due, ignoring")
		return
	}

	if err := s.manager.Trigger(ctx, *a, "notification", now); err != nil {
		telemetry.CheckerErrorsTotal.WithLabelValues("trigger").Inc()
		s.logger.Error().Err(err).Str("alarm_id", alarmID).Msg("Trigger failed")
	}
}

func (s *Service) syncNotifications(ctx context.Context) {
	alarms, err := s.alarms.ListEnabled(ctx)
	if err != nil {
		telemetry.CheckerErrorsTotal.WithLabelValues("list").Inc()
		s.logger.Error().Err(err).Msg("Failed to list alarms for notification sync")
		return
	}
	s.notifier.SyncAlarms(alarms, time.Now())
}
